package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/issuemesh/config"
	"github.com/hupe1980/issuemesh/conversation"
	"github.com/hupe1980/issuemesh/core"
	"github.com/hupe1980/issuemesh/logging"
	"github.com/hupe1980/issuemesh/router"
	"github.com/hupe1980/issuemesh/store"
)

// Options holds dependency and configuration overrides passed to NewManager.
type Options struct {
	// Store persists one record per session. Defaults to in-memory.
	Store core.RecordStore
	// TechLead enables the tech lead agent for multi-agent sessions.
	TechLead core.Invoker
	// Config supplies budget defaults, keywords and timeouts.
	Config *config.Config
	// Logger receives structured engine logs.
	Logger logging.Logger
	// Audit receives fire-and-forget interaction records.
	Audit core.AuditSink
}

// Usage is the display snapshot consumed by the interactive surface.
type Usage struct {
	SessionID string
	TotalCost float64
	TurnCount int
}

// Manager creates and resumes sessions and tracks the current one. The
// business analyst invoker must always be present; the tech lead is
// optional and its absence degrades multi-agent sessions gracefully.
type Manager struct {
	mu sync.Mutex

	store  core.RecordStore
	ba     core.Invoker
	tl     core.Invoker
	cfg    *config.Config
	logger logging.Logger
	audit  core.AuditSink

	current *Session
}

// NewManager constructs a Manager around the business analyst invoker.
func NewManager(ba core.Invoker, optFns ...func(o *Options)) *Manager {
	opts := Options{
		Store:  store.NewInMemoryStore(),
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
		Audit:  core.NoOpAuditSink{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		store:  opts.Store,
		ba:     ba,
		tl:     opts.TechLead,
		cfg:    opts.Config,
		logger: opts.Logger,
		audit:  opts.Audit,
	}
}

// StartNew allocates a session id, creates the conversation in its initial
// state with the configured budget defaults, persists it, and returns the
// session handle. The handle's Seed describes the target repository for the
// first agent invocation.
func (m *Manager) StartNew(ctx context.Context, repoOwner, repoName string, kind core.ConversationKind) (*Session, error) {
	id := core.NewID()
	repo := core.RepoRef{Owner: repoOwner, Name: repoName}
	rec := core.NewRecord(id, repo, kind, m.cfg.BudgetSnapshot())

	conv, err := conversation.New(ctx, m.store, rec, func(o *conversation.Options) {
		o.Audit = m.audit
		o.Logger = m.logger
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess := m.buildSession(conv)
	m.setCurrent(sess)
	m.logger.Info("session started session_id=%s repo=%s kind=%s", id, repo, kind)
	return sess, nil
}

// Resume rehydrates an existing session. It fails with ErrSessionNotFound
// when no record is persisted for the id. The budget tracker is rebuilt
// from the persisted extension ledger; totals carry over exactly.
func (m *Manager) Resume(ctx context.Context, sessionID, repoOwner, repoName string) (*Session, error) {
	conv, err := conversation.Load(ctx, m.store, sessionID, func(o *conversation.Options) {
		o.Audit = m.audit
		o.Logger = m.logger
	})
	if err != nil {
		if errors.Is(err, core.ErrConversationNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
		}
		return nil, err
	}

	if repo := conv.Repo(); repo.Owner != repoOwner || repo.Name != repoName {
		m.logger.Warn("resumed session targets %s, requested %s/%s", repo, repoOwner, repoName)
	}

	sess := m.buildSession(conv)
	m.setCurrent(sess)
	m.logger.Info("session resumed session_id=%s turns=%d cost=%.4f", sessionID, conv.TurnCount(), conv.TotalCost())
	return sess, nil
}

// Current returns the active session handle, or nil before the first
// StartNew/Resume.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentUsage returns the display snapshot for the active session. The
// zero Usage is returned when no session is active.
func (m *Manager) CurrentUsage() Usage {
	m.mu.Lock()
	sess := m.current
	m.mu.Unlock()
	if sess == nil {
		return Usage{}
	}
	return Usage{
		SessionID: sess.ID(),
		TotalCost: sess.conv.TotalCost(),
		TurnCount: sess.conv.TurnCount(),
	}
}

func (m *Manager) buildSession(conv *conversation.Conversation) *Session {
	r := router.New(m.ba, func(o *router.Options) {
		o.TechLead = m.tl
		o.Keywords = m.cfg.Keywords
		o.MultiAgent = conv.Kind() == core.KindMulti
		o.Timeout = m.cfg.AgentTimeout()
		o.Audit = m.audit
		o.Logger = m.logger
	})
	return &Session{conv: conv, router: r, audit: m.audit, logger: m.logger}
}

func (m *Manager) setCurrent(sess *Session) {
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()
}
