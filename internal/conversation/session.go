package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"spaces-client/internal/constant"
	"spaces-client/internal/dto"
	"spaces-client/internal/entity"
	"spaces-client/internal/notification"
	"spaces-client/internal/pkg/apperror"
	"spaces-client/internal/pkg/logger"

	"github.com/google/uuid"
)

const module = "Conversation"

type Gateway interface {
	Chat(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error)
	History(ctx context.Context, space, filename string) ([]dto.HistoryRecord, error)
	SaveConversation(ctx context.Context, req dto.SaveConversationRequest) error
}

type State int

const (
	StateEmpty State = iota
	StateLoadingHistory
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoadingHistory:
		return "loading_history"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Options struct {
	Model    string
	Location *time.Location
	Now      func() time.Time
	// SpaceFiles lists the known files of a space. Space-wide history uses
	// it to recognise file-scoped turns.
	SpaceFiles func(space string) []string
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = constant.ModelLlama3
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Session is the message log of one (space, file) pair. The log is
// append-only: failed turns add an error reply instead of removing the
// user's message.
type Session struct {
	key     entity.Selection
	token   uint64
	current func(token uint64) bool

	gateway Gateway
	sink    notification.Sink
	logger  logger.ILogger
	loc     *time.Location
	now     func() time.Time
	files   func(space string) []string

	mu        sync.Mutex
	state     State
	messages  []entity.ChatMessage
	inFlight  bool
	model     string
	collapsed map[string]bool
	ready     chan struct{}
}

// NewSession creates a standalone session that is always considered active.
func NewSession(key entity.Selection, gw Gateway, sink notification.Sink, log logger.ILogger, opts Options) *Session {
	return newSession(key, 0, nil, gw, sink, log, opts)
}

func newSession(key entity.Selection, token uint64, current func(uint64) bool, gw Gateway, sink notification.Sink, log logger.ILogger, opts Options) *Session {
	if log == nil {
		log = logger.NewNopLogger()
	}
	opts = opts.withDefaults()
	return &Session{
		key:       key,
		token:     token,
		current:   current,
		gateway:   gw,
		sink:      notification.OrDiscard(sink),
		logger:    log,
		loc:       opts.Location,
		now:       opts.Now,
		files:     opts.SpaceFiles,
		model:     opts.Model,
		collapsed: make(map[string]bool),
		ready:     make(chan struct{}),
	}
}

func (s *Session) Key() entity.Selection { return s.key }

func (s *Session) Token() uint64 { return s.token }

// Active reports whether responses for this session are still applied.
func (s *Session) Active() bool {
	return s.current == nil || s.current(s.token)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready is closed once the session leaves LoadingHistory.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Messages returns a copy of the log.
func (s *Session) Messages() []entity.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel changes the model used by the next Send.
func (s *Session) SetModel(model string) error {
	if !constant.IsSupportedModel(model) {
		return apperror.NewValidationError("model", fmt.Sprintf("unsupported model %q", model))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	return nil
}

// Load fetches history and moves the session to Ready. A failed fetch
// still ends in Ready, with an empty log.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateEmpty {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoadingHistory
	s.mu.Unlock()

	if !s.key.HasSpace() {
		s.becomeReady(nil)
		return nil
	}

	records, err := s.gateway.History(ctx, s.key.SpaceName, s.key.FileName)
	if !s.Active() {
		s.logger.Debug(module, "Discarding history of inactive session", s.details())
		s.becomeReady(nil)
		return apperror.ErrStaleSession
	}
	if err != nil {
		details := s.details()
		details["error"] = err.Error()
		s.logger.Warn(module, "Conversation history unavailable", details)
		s.sink.Notify(ctx, notification.Warning(module, "Could not load conversation history", details))
		s.becomeReady(nil)
		return err
	}

	var files []string
	if !s.key.HasFile() && s.files != nil {
		files = s.files(s.key.SpaceName)
	}
	messages := parseHistory(records, s.key, files, s.loc)
	s.becomeReady(messages)
	s.logger.Debug(module, "History loaded", map[string]interface{}{
		"space": s.key.SpaceName, "file": s.key.FileName, "messages": len(messages),
	})
	return nil
}

func (s *Session) becomeReady(history []entity.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady {
		return
	}
	s.messages = append(history, s.messages...)
	s.state = StateReady
	close(s.ready)
}

// Send appends text as a user message, asks the chat endpoint and appends
// the reply. On a failed call the reply is an error message and the
// error is returned alongside it.
func (s *Session) Send(ctx context.Context, text string) (entity.ChatMessage, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return entity.ChatMessage{}, s.reject(ctx, apperror.NewValidationError("message", "message must not be empty"))
	}

	s.mu.Lock()
	if err := s.admitLocked(query); err != nil {
		s.mu.Unlock()
		return entity.ChatMessage{}, s.reject(ctx, err)
	}
	user := entity.ChatMessage{
		Id:     uuid.New(),
		Sender: constant.ChatSenderUser,
		Text:   query,
		Kind:   entity.MessageKindNormal,
	}
	s.messages = append(s.messages, user)
	s.inFlight = true
	model := s.model
	s.mu.Unlock()

	resp, err := s.gateway.Chat(ctx, dto.ChatRequest{
		Space:    s.key.SpaceName,
		Filename: s.key.FileName,
		Query:    query,
		Model:    model,
	})
	if err == nil && resp.Answer() == "" {
		err = &apperror.MalformedPayloadError{Op: "chat", Err: errors.New("response carries no answer")}
	}

	s.mu.Lock()
	s.inFlight = false
	if !s.Active() {
		s.mu.Unlock()
		s.logger.Debug(module, "Discarding reply for inactive session", s.details())
		return entity.ChatMessage{}, apperror.ErrStaleSession
	}
	var reply entity.ChatMessage
	if err != nil {
		reply = errorReply()
	} else {
		reply = botReply(resp)
	}
	s.messages = append(s.messages, reply)
	s.mu.Unlock()

	if err != nil {
		details := s.details()
		details["error"] = err.Error()
		details["model"] = model
		s.logger.Error(module, "Chat request failed", details)
		s.sink.Notify(ctx, notification.FromError(module, err, details))
		return reply, err
	}

	s.persist(ctx, user, reply)
	return reply, nil
}

// admitLocked runs the checks that reject a send without touching the log.
func (s *Session) admitLocked(query string) error {
	if s.state != StateReady {
		return apperror.ErrNotReady
	}
	if !s.key.HasSpace() {
		return apperror.NewValidationError("space", "no space selected")
	}
	if s.inFlight {
		return apperror.ErrSendInFlight
	}
	// A question answered by an error reply may be asked again.
	for i := len(s.messages) - 1; i >= 0; i-- {
		msg := s.messages[i]
		if msg.Kind == entity.MessageKindError {
			break
		}
		if msg.IsUser() {
			if strings.TrimSpace(msg.Text) == query {
				return &apperror.DuplicateSubmissionError{Text: query}
			}
			break
		}
	}
	return nil
}

func (s *Session) reject(ctx context.Context, err error) error {
	s.sink.Notify(ctx, notification.FromError(module, err, s.details()))
	return err
}

// persist stores both turns. Failures only produce a warning.
func (s *Session) persist(ctx context.Context, turns ...entity.ChatMessage) {
	stamp := s.now().UTC().Format(time.RFC3339)
	for _, turn := range turns {
		err := s.gateway.SaveConversation(ctx, dto.SaveConversationRequest{
			Space:    s.key.SpaceName,
			Filename: s.key.FileName,
			Message: dto.SaveConversationMessage{
				Sender:    turn.Sender,
				Text:      turn.Text,
				Timestamp: stamp,
			},
		})
		if err != nil {
			details := s.details()
			details["error"] = err.Error()
			s.logger.Warn(module, "Failed to save conversation", details)
			s.sink.Notify(ctx, notification.Warning(module, "Conversation could not be saved", details))
			return
		}
	}
}

// Groups partitions the log by calendar date in the session's location.
func (s *Session) Groups() []DateGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return groupByDate(s.messages, s.now(), s.loc, s.collapsed)
}

// SetCollapsed overrides the default collapse state of one date group.
func (s *Session) SetCollapsed(date string, collapsed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collapsed[date] = collapsed
}

// ToggleGroup flips a date group and returns its new state.
func (s *Session) ToggleGroup(date string) bool {
	var current bool
	found := false
	for _, g := range s.Groups() {
		if g.Date == date {
			current, found = g.Collapsed, true
			break
		}
	}
	if !found {
		return false
	}
	s.SetCollapsed(date, !current)
	return !current
}

func (s *Session) details() map[string]interface{} {
	return map[string]interface{}{"space": s.key.SpaceName, "file": s.key.FileName}
}

func errorReply() entity.ChatMessage {
	return entity.ChatMessage{
		Id:     uuid.New(),
		Sender: constant.ChatSenderBot,
		Text:   constant.ChatErrorText,
		Kind:   entity.MessageKindError,
	}
}

func botReply(resp *dto.ChatResponse) entity.ChatMessage {
	citations := make([]entity.Citation, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		citations = append(citations, entity.Citation{Source: c.Source, Page: c.Page, Text: c.Text})
	}
	return entity.ChatMessage{
		Id:        uuid.New(),
		Sender:    constant.ChatSenderBot,
		Text:      resp.Answer(),
		Citations: citations,
		Kind:      entity.MessageKindNormal,
	}
}
