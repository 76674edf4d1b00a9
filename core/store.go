package core

import "context"

// RecordKey is the single logical key under which the engine stores the full
// conversation + budget document for a session.
const RecordKey = "conversation"

// RecordStore is the contract over the external key-value persistence
// service. The engine stores exactly one record per session under RecordKey.
//
// Get must return ErrSessionNotFound (possibly wrapped) when no record
// exists for the given session id and key. Set overwrites the whole
// document. I/O failures propagate unmodified; the engine does not retry.
type RecordStore interface {
	Get(ctx context.Context, sessionID, key string) (*Record, error)
	Set(ctx context.Context, sessionID, key string, record *Record) error
}
