// Package issuemesh provides a high-level façade over the conversation
// orchestration engine: session lifecycle, agent routing, budget tracking
// and persistence. Most applications interact with this package by:
//  1. Creating an IssueMesh via New() with a business analyst invoker
//     (optionally adding a tech lead and overriding default services)
//  2. Starting or resuming a session (StartSession / ResumeSession)
//  3. Advancing the conversation one user input at a time (Session.Send)
//
// The façade delegates lifecycle management to session.Manager while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// record store and a structured logger.
package issuemesh

import (
	"context"

	"github.com/hupe1980/issuemesh/config"
	"github.com/hupe1980/issuemesh/core"
	"github.com/hupe1980/issuemesh/logging"
	"github.com/hupe1980/issuemesh/session"
)

// Options configures the IssueMesh instance.
type Options struct {
	// Store persists one record per session (defaults to in-memory).
	Store core.RecordStore
	// TechLead enables the tech lead agent for multi-agent sessions.
	TechLead core.Invoker
	// Config supplies budget defaults, keyword tables and timeouts.
	Config *config.Config
	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
	// Audit receives fire-and-forget interaction records.
	Audit core.AuditSink
}

// IssueMesh is the high-level façade aggregating the lifecycle manager and
// engine services.
type IssueMesh struct {
	manager *session.Manager
}

// New creates a new IssueMesh instance around the business analyst invoker
// with optional overrides. Any unset service is replaced by a safe default.
func New(ba core.Invoker, optFns ...func(o *Options)) *IssueMesh {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	manager := session.NewManager(ba, func(o *session.Options) {
		if opts.Store != nil {
			o.Store = opts.Store
		}
		if opts.Config != nil {
			o.Config = opts.Config
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
		if opts.Audit != nil {
			o.Audit = opts.Audit
		}
		o.TechLead = opts.TechLead
	})
	return &IssueMesh{manager: manager}
}

// StartSession creates and persists a fresh session targeting the given
// repository.
func (im *IssueMesh) StartSession(ctx context.Context, repoOwner, repoName string, kind core.ConversationKind) (*session.Session, error) {
	return im.manager.StartNew(ctx, repoOwner, repoName, kind)
}

// ResumeSession rehydrates a persisted session. It fails with
// core.ErrSessionNotFound for unknown ids.
func (im *IssueMesh) ResumeSession(ctx context.Context, sessionID, repoOwner, repoName string) (*session.Session, error) {
	return im.manager.Resume(ctx, sessionID, repoOwner, repoName)
}

// CurrentSession returns the active session handle, or nil before the first
// start/resume.
func (im *IssueMesh) CurrentSession() *session.Session {
	return im.manager.Current()
}

// CurrentUsage returns the display snapshot for the active session.
func (im *IssueMesh) CurrentUsage() session.Usage {
	return im.manager.CurrentUsage()
}
