package upload

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"spaces-client/internal/constant"
	"spaces-client/internal/entity"
	"spaces-client/internal/gateway"
	"spaces-client/internal/notification"
	"spaces-client/internal/pkg/apperror"
	"spaces-client/internal/pkg/logger"

	"github.com/docker/go-units"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const module = "Upload"

type Gateway interface {
	UploadFile(ctx context.Context, space string, file entity.FileHandle, progress gateway.ProgressFunc) (string, error)
}

// Workspace is the part of the workspace store uploads depend on.
type Workspace interface {
	HasSpace(name string) bool
	Reconcile(ctx context.Context, spaceName string) error
}

type Listener func(entity.UploadSession)

// Manager runs uploads, one session per target space. Uploads to different
// spaces proceed independently; a second upload to a busy space is
// rejected.
type Manager struct {
	gateway   Gateway
	workspace Workspace
	sink      notification.Sink
	logger    logger.ILogger
	maxSize   int64

	mu       sync.Mutex
	sessions map[string]*entity.UploadSession

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// NewManager creates a manager. maxSize <= 0 disables the size check.
func NewManager(gw Gateway, ws Workspace, sink notification.Sink, log logger.ILogger, maxSize int64) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		gateway:   gw,
		workspace: ws,
		sink:      notification.OrDiscard(sink),
		logger:    log,
		maxSize:   maxSize,
		sessions:  make(map[string]*entity.UploadSession),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn for every phase and progress change.
func (m *Manager) Subscribe(fn Listener) func() {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) publish(s entity.UploadSession) {
	m.listenersMu.Lock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.listeners[id])
	}
	m.listenersMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Session returns the current state for a target space. Targets that never
// uploaded report an idle session.
func (m *Manager) Session(target string) entity.UploadSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[target]; ok {
		return *s
	}
	return entity.UploadSession{TargetSpace: target, Phase: entity.UploadPhaseIdle}
}

// Upload validates file, sends it to target and reconciles the target's
// file list on success. It returns the terminal session; afterwards the
// stored session is back to idle.
func (m *Manager) Upload(ctx context.Context, target string, file entity.FileHandle) (entity.UploadSession, error) {
	target = strings.TrimSpace(target)
	rejected := entity.UploadSession{FileName: file.Name, TargetSpace: target, Phase: entity.UploadPhaseFailed}

	if target == "" {
		err := apperror.NewValidationError("space", "no target space selected")
		rejected.Err = err
		m.sink.Notify(ctx, notification.FromError(module, err, nil))
		return rejected, err
	}
	if m.workspace != nil && !m.workspace.HasSpace(target) {
		err := apperror.NewValidationError("space", fmt.Sprintf("unknown space %q", target))
		rejected.Err = err
		m.sink.Notify(ctx, notification.FromError(module, err, nil))
		return rejected, err
	}

	session, err := m.begin(target, file.Name)
	if err != nil {
		rejected.Err = err
		m.sink.Notify(ctx, notification.FromError(module, err, map[string]interface{}{"space": target}))
		return rejected, err
	}
	m.publish(session)
	id := session.Id

	file, err = m.validate(file)
	if err != nil {
		return m.finish(ctx, target, id, err, ""), err
	}

	m.update(target, id, func(s *entity.UploadSession) { s.Phase = entity.UploadPhaseUploading })
	m.logger.Info(module, "Uploading file", map[string]interface{}{
		"space": target, "file": file.Name, "size": units.HumanSize(float64(file.Size)),
	})

	message, err := m.gateway.UploadFile(ctx, target, file, func(pct int) {
		m.update(target, id, func(s *entity.UploadSession) {
			if pct > s.ProgressPercent {
				s.ProgressPercent = pct
			}
		})
	})
	if err != nil {
		return m.finish(ctx, target, id, err, ""), err
	}

	if message == "" {
		message = "File uploaded successfully"
	}
	done := m.finish(ctx, target, id, nil, message)

	// The store surfaces its own failures; the upload itself succeeded.
	if m.workspace != nil {
		_ = m.workspace.Reconcile(ctx, target)
	}
	m.reset(target, id)
	return done, nil
}

func (m *Manager) begin(target, fileName string) (entity.UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[target]; ok && s.Phase.IsBusy() {
		return entity.UploadSession{}, fmt.Errorf("%s: %w", target, apperror.ErrUploadInProgress)
	}
	s := &entity.UploadSession{
		Id:          uuid.New(),
		FileName:    fileName,
		TargetSpace: target,
		Phase:       entity.UploadPhaseValidating,
	}
	m.sessions[target] = s
	return *s, nil
}

// validate fills in a missing media type and size and enforces the PDF
// and size rules.
func (m *Manager) validate(file entity.FileHandle) (entity.FileHandle, error) {
	if file.Content == nil {
		return file, apperror.NewValidationError("file", "file has no content")
	}

	if file.MediaType == "" {
		mtype, err := mimetype.DetectReader(file.Content)
		if err != nil {
			return file, fmt.Errorf("detect media type: %w", err)
		}
		file.MediaType = mtype.String()
		if mtype.Is(constant.MediaTypePDF) {
			file.MediaType = constant.MediaTypePDF
		}
	}
	if file.MediaType != constant.MediaTypePDF {
		return file, &apperror.InvalidFileTypeError{FileName: file.Name, MediaType: file.MediaType}
	}

	if file.Size <= 0 {
		size, err := file.Content.Seek(0, io.SeekEnd)
		if err != nil {
			return file, fmt.Errorf("measure file: %w", err)
		}
		file.Size = size
	}
	if _, err := file.Content.Seek(0, io.SeekStart); err != nil {
		return file, fmt.Errorf("rewind file: %w", err)
	}

	if m.maxSize > 0 && file.Size > m.maxSize {
		return file, apperror.NewValidationError("file", fmt.Sprintf("%s is %s, larger than the %s limit",
			file.Name, units.HumanSize(float64(file.Size)), units.HumanSize(float64(m.maxSize))))
	}
	return file, nil
}

// finish moves the session to its terminal phase and notifies.
func (m *Manager) finish(ctx context.Context, target string, id uuid.UUID, err error, message string) entity.UploadSession {
	var final entity.UploadSession
	m.update(target, id, func(s *entity.UploadSession) {
		if err != nil {
			s.Phase = entity.UploadPhaseFailed
			s.Err = err
		} else {
			s.Phase = entity.UploadPhaseSucceeded
			s.ProgressPercent = 100
		}
		final = *s
	})

	details := map[string]interface{}{"space": target, "file": final.FileName}
	if err != nil {
		details["error"] = err.Error()
		m.logger.Warn(module, "Upload failed", details)
		m.sink.Notify(ctx, notification.FromError(module, err, details))
		m.reset(target, id)
	} else {
		m.logger.Info(module, "Upload finished", details)
		m.sink.Notify(ctx, notification.Success(module, message, details))
	}
	return final
}

func (m *Manager) reset(target string, id uuid.UUID) {
	m.update(target, id, func(s *entity.UploadSession) {
		*s = entity.UploadSession{TargetSpace: target, Phase: entity.UploadPhaseIdle}
	})
}

// update applies fn under the lock and publishes the result. It is a no-op
// once the target's stored session is no longer the one identified by id.
func (m *Manager) update(target string, id uuid.UUID, fn func(*entity.UploadSession)) {
	m.mu.Lock()
	s, ok := m.sessions[target]
	if !ok || s.Id != id {
		m.mu.Unlock()
		return
	}
	before := *s
	fn(s)
	after := *s
	m.mu.Unlock()

	if before.Id != after.Id || before.Phase != after.Phase || before.ProgressPercent != after.ProgressPercent {
		m.publish(after)
	}
}
