package upload

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"spaces-client/internal/constant"
	"spaces-client/internal/entity"
	"spaces-client/internal/gateway"
	"spaces-client/internal/notification"
	"spaces-client/internal/pkg/apperror"
	"spaces-client/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGateway struct {
	mu       sync.Mutex
	calls    int
	steps    []int
	err      error
	started  chan struct{}
	release  chan struct{}
	received []entity.FileHandle
}

func (f *fakeGateway) UploadFile(ctx context.Context, space string, file entity.FileHandle, progress gateway.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.calls++
	f.received = append(f.received, file)
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	for _, pct := range f.steps {
		progress(pct)
	}
	if f.err != nil {
		return "", f.err
	}
	return "File uploaded successfully", nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeWorkspace struct {
	mu         sync.Mutex
	spaces     map[string]bool
	reconciled []string
	entered    chan struct{}
	hold       chan struct{}
}

func newFakeWorkspace(names ...string) *fakeWorkspace {
	ws := &fakeWorkspace{spaces: map[string]bool{}}
	for _, n := range names {
		ws.spaces[n] = true
	}
	return ws
}

func (w *fakeWorkspace) HasSpace(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spaces[name]
}

func (w *fakeWorkspace) Reconcile(_ context.Context, name string) error {
	w.mu.Lock()
	w.reconciled = append(w.reconciled, name)
	entered, hold := w.entered, w.hold
	w.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if hold != nil {
		<-hold
	}
	return nil
}

func pdf(name string) entity.FileHandle {
	content := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n%%EOF\n")
	return entity.FileHandle{Name: name, MediaType: constant.MediaTypePDF, Size: int64(len(content)), Content: bytes.NewReader(content)}
}

func newTestManager(gw Gateway, ws Workspace, maxSize int64) (*Manager, *notification.Recorder) {
	rec := &notification.Recorder{}
	return NewManager(gw, ws, rec, logger.NewNopLogger(), maxSize), rec
}

func TestUploadSucceedsWithMonotonicProgress(t *testing.T) {
	gw := &fakeGateway{steps: []int{0, 30, 20, 60, 99}}
	ws := newFakeWorkspace("Docs")
	m, rec := newTestManager(gw, ws, 0)

	var mu sync.Mutex
	var progress []int
	var phases []entity.UploadPhase
	m.Subscribe(func(s entity.UploadSession) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, s.ProgressPercent)
		if len(phases) == 0 || phases[len(phases)-1] != s.Phase {
			phases = append(phases, s.Phase)
		}
	})

	session, err := m.Upload(context.Background(), "Docs", pdf("report.pdf"))
	require.NoError(t, err)

	assert.Equal(t, entity.UploadPhaseSucceeded, session.Phase)
	assert.Equal(t, 100, session.ProgressPercent)
	assert.NotEqual(t, uuid.Nil, session.Id)
	assert.Equal(t, []string{"Docs"}, ws.reconciled)
	assert.Equal(t, entity.UploadPhaseIdle, m.Session("Docs").Phase)

	assert.Equal(t, []entity.UploadPhase{
		entity.UploadPhaseValidating,
		entity.UploadPhaseUploading,
		entity.UploadPhaseSucceeded,
		entity.UploadPhaseIdle,
	}, phases)

	// The trailing idle reset reports 0; everything before it must not decrease.
	observed := progress[:len(progress)-1]
	for i := 1; i < len(observed); i++ {
		assert.GreaterOrEqual(t, observed[i], observed[i-1])
	}
	assert.Equal(t, 100, observed[len(observed)-1])

	last, _ := rec.Last()
	assert.Equal(t, notification.LevelSuccess, last.Level)
}

func TestUploadRejectsNonPDFBeforeNetwork(t *testing.T) {
	gw := &fakeGateway{}
	m, rec := newTestManager(gw, newFakeWorkspace("Docs"), 0)

	file := entity.FileHandle{Name: "notes.txt", MediaType: "text/plain", Size: 5, Content: bytes.NewReader([]byte("hello"))}
	session, err := m.Upload(context.Background(), "Docs", file)

	var fileTypeErr *apperror.InvalidFileTypeError
	require.ErrorAs(t, err, &fileTypeErr)
	assert.Equal(t, entity.UploadPhaseFailed, session.Phase)
	assert.Equal(t, 0, session.ProgressPercent)
	assert.Zero(t, gw.callCount())
	assert.Equal(t, []notification.Level{notification.LevelWarning}, rec.Levels())
	assert.Equal(t, entity.UploadPhaseIdle, m.Session("Docs").Phase)
}

func TestUploadSniffsMissingMediaType(t *testing.T) {
	gw := &fakeGateway{steps: []int{50}}
	m, _ := newTestManager(gw, newFakeWorkspace("Docs"), 0)

	file := pdf("scan.pdf")
	file.MediaType = ""
	file.Size = 0

	_, err := m.Upload(context.Background(), "Docs", file)
	require.NoError(t, err)
	require.Len(t, gw.received, 1)
	assert.Equal(t, constant.MediaTypePDF, gw.received[0].MediaType)
	assert.Positive(t, gw.received[0].Size)

	text := entity.FileHandle{Name: "readme", Content: bytes.NewReader([]byte("plain words only"))}
	_, err = m.Upload(context.Background(), "Docs", text)
	var fileTypeErr *apperror.InvalidFileTypeError
	assert.ErrorAs(t, err, &fileTypeErr)
	assert.Equal(t, 1, gw.callCount())
}

func TestUploadRejectsMissingOrUnknownTarget(t *testing.T) {
	gw := &fakeGateway{}
	m, _ := newTestManager(gw, newFakeWorkspace("Docs"), 0)

	var validationErr *apperror.ValidationError
	_, err := m.Upload(context.Background(), "  ", pdf("a.pdf"))
	assert.ErrorAs(t, err, &validationErr)

	session, err := m.Upload(context.Background(), "Missing", pdf("a.pdf"))
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, entity.UploadPhaseFailed, session.Phase)
	assert.Zero(t, gw.callCount())
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	gw := &fakeGateway{}
	m, rec := newTestManager(gw, newFakeWorkspace("Docs"), 10)

	_, err := m.Upload(context.Background(), "Docs", pdf("big.pdf"))
	var validationErr *apperror.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "10B limit")
	assert.Zero(t, gw.callCount())

	last, _ := rec.Last()
	assert.Equal(t, apperror.CodeValidation, last.Code)
}

func TestUploadFailureLeavesFileListAlone(t *testing.T) {
	gw := &fakeGateway{steps: []int{0, 40}, err: &apperror.NetworkError{Op: "upload file", Err: errors.New("connection reset")}}
	ws := newFakeWorkspace("Docs")
	m, rec := newTestManager(gw, ws, 0)

	session, err := m.Upload(context.Background(), "Docs", pdf("report.pdf"))
	require.Error(t, err)
	assert.Equal(t, entity.UploadPhaseFailed, session.Phase)
	assert.Equal(t, 40, session.ProgressPercent)
	assert.Empty(t, ws.reconciled)
	assert.Equal(t, entity.UploadPhaseIdle, m.Session("Docs").Phase)

	last, _ := rec.Last()
	assert.Equal(t, notification.LevelError, last.Level)
	assert.Equal(t, apperror.CodeNetwork, last.Code)
}

func TestSecondUploadToBusyTargetIsRejected(t *testing.T) {
	gw := &fakeGateway{started: make(chan struct{}, 2), release: make(chan struct{})}
	ws := newFakeWorkspace("Docs", "Notes")
	m, _ := newTestManager(gw, ws, 0)
	ctx := context.Background()

	type result struct {
		session entity.UploadSession
		err     error
	}
	results := make(chan result, 2)
	go func() {
		s, err := m.Upload(ctx, "Docs", pdf("first.pdf"))
		results <- result{s, err}
	}()
	<-gw.started
	assert.Equal(t, entity.UploadPhaseUploading, m.Session("Docs").Phase)

	_, err := m.Upload(ctx, "Docs", pdf("second.pdf"))
	assert.ErrorIs(t, err, apperror.ErrUploadInProgress)

	go func() {
		s, err := m.Upload(ctx, "Notes", pdf("other.pdf"))
		results <- result{s, err}
	}()
	<-gw.started

	close(gw.release)
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		assert.Equal(t, entity.UploadPhaseSucceeded, r.session.Phase)
	}
	assert.Equal(t, 2, gw.callCount())

	_, err = m.Upload(ctx, "Docs", pdf("third.pdf"))
	assert.NoError(t, err, "target accepts uploads again after the terminal phase")
}

func TestFinishedUploadDoesNotResetItsSuccessor(t *testing.T) {
	gw := &fakeGateway{started: make(chan struct{}, 3)}
	ws := newFakeWorkspace("Docs")
	ws.entered = make(chan struct{}, 2)
	ws.hold = make(chan struct{})
	m, _ := newTestManager(gw, ws, 0)
	ctx := context.Background()

	type result struct {
		session entity.UploadSession
		err     error
	}
	first := make(chan result, 1)
	go func() {
		s, err := m.Upload(ctx, "Docs", pdf("a.pdf"))
		first <- result{s, err}
	}()
	<-gw.started
	<-ws.entered
	assert.Equal(t, entity.UploadPhaseSucceeded, m.Session("Docs").Phase)

	// The first upload is still reconciling; the next one may start.
	gw.mu.Lock()
	gw.release = make(chan struct{})
	gw.mu.Unlock()
	second := make(chan result, 1)
	go func() {
		s, err := m.Upload(ctx, "Docs", pdf("b.pdf"))
		second <- result{s, err}
	}()
	<-gw.started
	running := m.Session("Docs")
	assert.Equal(t, entity.UploadPhaseUploading, running.Phase)
	assert.Equal(t, "b.pdf", running.FileName)

	close(ws.hold)
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, "a.pdf", r.session.FileName)

	after := m.Session("Docs")
	assert.Equal(t, entity.UploadPhaseUploading, after.Phase)
	assert.Equal(t, running.Id, after.Id)

	_, err := m.Upload(ctx, "Docs", pdf("c.pdf"))
	assert.ErrorIs(t, err, apperror.ErrUploadInProgress)
	assert.Equal(t, 2, gw.callCount())

	close(gw.release)
	r = <-second
	require.NoError(t, r.err)
	assert.Equal(t, entity.UploadPhaseIdle, m.Session("Docs").Phase)
}
