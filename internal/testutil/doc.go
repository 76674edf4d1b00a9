// Package testutil contains helper builders and test doubles used across
// tests to reduce boilerplate when constructing core model objects (records,
// turns) and scripting agent behavior. These helpers are intentionally
// minimal and avoid adding third-party dependencies. They are not intended
// for production usage.
package testutil
