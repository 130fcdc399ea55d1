package conversation

import (
	"context"
	"sync"
	"sync/atomic"

	"spaces-client/internal/constant"
	"spaces-client/internal/entity"
	"spaces-client/internal/notification"
	"spaces-client/internal/pkg/apperror"
	"spaces-client/internal/pkg/logger"
	"spaces-client/internal/repository/memory"
)

// Manager creates one session per activation. Every selection change
// bumps the activation token, so replies for an earlier selection are
// discarded when they arrive.
type Manager struct {
	gateway Gateway
	sink    notification.Sink
	logger  logger.ILogger
	opts    Options
	repo    *memory.SessionRepository[*Session]

	token atomic.Uint64

	mu     sync.Mutex
	active *Session
	model  string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(gw Gateway, sink notification.Sink, log logger.ILogger, repo *memory.SessionRepository[*Session], opts Options) (*Manager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	opts = opts.withDefaults()
	if !constant.IsSupportedModel(opts.Model) {
		return nil, apperror.NewValidationError("model", "unsupported model "+opts.Model)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		gateway: gw,
		sink:    notification.OrDiscard(sink),
		logger:  log,
		opts:    opts,
		repo:    repo,
		model:   opts.Model,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func sessionKey(sel entity.Selection) string {
	return sel.SpaceName + "\x00" + sel.FileName
}

func (m *Manager) isCurrent(token uint64) bool {
	return m.token.Load() == token
}

// Activate starts a fresh session for sel and loads its history in the
// background.
func (m *Manager) Activate(sel entity.Selection) *Session {
	token := m.token.Add(1)

	m.mu.Lock()
	opts := m.opts
	opts.Model = m.model
	session := newSession(sel, token, m.isCurrent, m.gateway, m.sink, m.logger, opts)
	m.active = session
	m.mu.Unlock()

	if m.repo != nil {
		m.repo.Save(sessionKey(sel), session)
	}
	m.logger.Debug(module, "Session activated", map[string]interface{}{
		"space": sel.SpaceName, "file": sel.FileName, "token": token,
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := session.Load(m.ctx); err != nil {
			m.forget(session)
		}
	}()
	return session
}

// Open returns the cached session for sel while it is still the current
// activation, so its loaded history is reused. Otherwise sel is activated
// again and its history fetched.
func (m *Manager) Open(sel entity.Selection) *Session {
	if session, ok := m.Lookup(sel); ok && session.Active() {
		m.logger.Debug(module, "Reusing cached session", map[string]interface{}{
			"space": sel.SpaceName, "file": sel.FileName, "token": session.Token(),
		})
		return session
	}
	return m.Activate(sel)
}

// forget drops a session whose history never loaded, unless a newer
// session for the same selection has replaced it.
func (m *Manager) forget(session *Session) {
	if m.repo == nil {
		return
	}
	key := sessionKey(session.Key())
	if cached, ok := m.repo.Get(key); ok && cached == session {
		m.repo.Delete(key)
	}
}

// OnSelectionChanged matches the workspace store's listener signature.
func (m *Manager) OnSelectionChanged(_, next entity.Selection) {
	m.Activate(next)
}

func (m *Manager) Active() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != nil
}

// Lookup returns the most recent session created for sel, if it is still
// cached.
func (m *Manager) Lookup(sel entity.Selection) (*Session, bool) {
	if m.repo == nil {
		return nil, false
	}
	return m.repo.Get(sessionKey(sel))
}

// Send forwards to the active session once its history has loaded.
func (m *Manager) Send(ctx context.Context, text string) (entity.ChatMessage, error) {
	session, ok := m.Active()
	if !ok {
		return entity.ChatMessage{}, apperror.NewValidationError("space", "no space selected")
	}
	select {
	case <-session.Ready():
	case <-ctx.Done():
		return entity.ChatMessage{}, ctx.Err()
	}
	return session.Send(ctx, text)
}

func (m *Manager) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// SetModel applies to the active session and every later one.
func (m *Manager) SetModel(model string) error {
	if !constant.IsSupportedModel(model) {
		return apperror.NewValidationError("model", "unsupported model "+model)
	}
	m.mu.Lock()
	m.model = model
	active := m.active
	m.mu.Unlock()

	if active != nil {
		return active.SetModel(model)
	}
	return nil
}

// Close cancels pending history loads and waits for them.
func (m *Manager) Close() {
	m.token.Add(1)
	m.cancel()
	m.wg.Wait()
	if m.repo != nil {
		m.repo.Flush()
	}
}
