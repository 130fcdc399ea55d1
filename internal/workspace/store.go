package workspace

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"spaces-client/internal/dto"
	"spaces-client/internal/entity"
	"spaces-client/internal/notification"
	"spaces-client/internal/pkg/apperror"
	"spaces-client/internal/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const module = "Workspace"

// maxConcurrentListings bounds the per-space file listings of one refresh.
const maxConcurrentListings = 4

type Gateway interface {
	ListSpaces(ctx context.Context) ([]string, error)
	ListFiles(ctx context.Context, space string) ([]dto.FileDTO, error)
	CreateSpace(ctx context.Context, name string) (string, error)
	ConvertFile(ctx context.Context, space, fileName string) (string, error)
}

// SelectionListener is called after every selection change, outside the
// store's lock.
type SelectionListener func(prev, next entity.Selection)

// Store owns the space collection and the current selection. It is the
// only writer of the collection, and every write replaces it wholesale.
type Store struct {
	gateway Gateway
	sink    notification.Sink
	logger  logger.ILogger

	mu        sync.RWMutex
	spaces    []entity.Space
	selection entity.Selection
	version   uint64

	// reconcileMu serializes refreshes so an older response can never
	// overwrite a newer snapshot.
	reconcileMu sync.Mutex

	listenersMu sync.Mutex
	listeners   map[int]SelectionListener
	nextID      int
}

func NewStore(gateway Gateway, sink notification.Sink, log logger.ILogger) *Store {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{
		gateway:   gateway,
		sink:      notification.OrDiscard(sink),
		logger:    log,
		spaces:    []entity.Space{},
		listeners: make(map[int]SelectionListener),
	}
}

// Subscribe registers fn for selection changes and returns its cancel func.
func (s *Store) Subscribe(fn SelectionListener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) publish(prev, next entity.Selection) {
	if prev == next {
		return
	}
	s.listenersMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]SelectionListener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(prev, next)
	}
}

// RefreshAll fetches every space and its files, then swaps the collection
// in one step. On any failure the previous snapshot stays in place.
func (s *Store) RefreshAll(ctx context.Context) error {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	spaces, err := s.fetchAll(ctx)
	if err != nil {
		s.fail(ctx, "Failed to refresh spaces", err, nil)
		return err
	}

	s.commit(spaces)
	s.logger.Info(module, "Spaces refreshed", map[string]interface{}{"spaces": len(spaces)})
	return nil
}

func (s *Store) fetchAll(ctx context.Context) ([]entity.Space, error) {
	names, err := s.gateway.ListSpaces(ctx)
	if err != nil {
		return nil, err
	}

	spaces := make([]entity.Space, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentListings)
	for i, name := range names {
		g.Go(func() error {
			files, err := s.gateway.ListFiles(gctx, name)
			if err != nil {
				return fmt.Errorf("list files of %s: %w", name, err)
			}
			spaces[i] = entity.NewSpace(name, toFiles(files))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return spaces, nil
}

// Reconcile re-fetches one space's files and replaces the collection with
// a copy carrying the new list. An empty or unknown name falls back to a
// full refresh.
func (s *Store) Reconcile(ctx context.Context, spaceName string) error {
	if spaceName == "" || !s.HasSpace(spaceName) {
		return s.RefreshAll(ctx)
	}

	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	files, err := s.gateway.ListFiles(ctx, spaceName)
	if err != nil {
		s.fail(ctx, "Failed to refresh space", err, map[string]interface{}{"space": spaceName})
		return err
	}

	current := s.Spaces()
	for i := range current {
		if current[i].Name == spaceName {
			current[i] = entity.NewSpace(spaceName, toFiles(files))
		}
	}
	s.commit(current)
	s.logger.Debug(module, "Space reconciled", map[string]interface{}{"space": spaceName, "files": len(files)})
	return nil
}

// commit installs a new snapshot and repairs the selection against it.
func (s *Store) commit(spaces []entity.Space) {
	s.mu.Lock()
	prev := s.selection
	s.spaces = spaces
	s.version++
	s.selection = repairSelection(spaces, prev)
	next := s.selection
	s.mu.Unlock()

	s.publish(prev, next)
}

func repairSelection(spaces []entity.Space, sel entity.Selection) entity.Selection {
	if len(spaces) == 0 {
		return entity.Selection{}
	}
	space, ok := findSpace(spaces, sel.SpaceName)
	if !ok {
		// Nothing selected yet, or the selected space disappeared.
		return entity.Selection{SpaceName: spaces[0].Name}
	}
	if sel.FileName != "" {
		if _, ok := space.FindFile(sel.FileName); !ok {
			sel.FileName = ""
		}
	}
	return sel
}

// CreateSpace validates the name, creates the space remotely and refreshes.
func (s *Store) CreateSpace(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		err := apperror.NewValidationError("name", "space name must not be empty")
		s.sink.Notify(ctx, notification.FromError(module, err, nil))
		return err
	}

	message, err := s.gateway.CreateSpace(ctx, name)
	if err != nil {
		s.fail(ctx, "Failed to create space", err, map[string]interface{}{"space": name})
		return err
	}
	if message == "" {
		message = fmt.Sprintf("Space %s created", name)
	}
	s.sink.Notify(ctx, notification.Success(module, message, map[string]interface{}{"space": name}))

	if err := s.RefreshAll(ctx); err != nil {
		return fmt.Errorf("space %s created but refresh failed: %w", name, err)
	}
	return nil
}

// IndexFile triggers server-side conversion, then reconciles the space to
// learn the indexed flag from the server.
func (s *Store) IndexFile(ctx context.Context, spaceName, fileName string) error {
	space, ok := s.Space(spaceName)
	if !ok {
		err := apperror.NewValidationError("space", fmt.Sprintf("unknown space %q", spaceName))
		s.sink.Notify(ctx, notification.FromError(module, err, nil))
		return err
	}
	if _, ok := space.FindFile(fileName); !ok {
		err := apperror.NewValidationError("file", fmt.Sprintf("no file %q in space %q", fileName, spaceName))
		s.sink.Notify(ctx, notification.FromError(module, err, nil))
		return err
	}

	details := map[string]interface{}{"space": spaceName, "file": fileName}
	message, err := s.gateway.ConvertFile(ctx, spaceName, fileName)
	if err != nil {
		s.fail(ctx, "Failed to index file", err, details)
		return err
	}
	s.sink.Notify(ctx, notification.Success(module, message, details))

	return s.Reconcile(ctx, spaceName)
}

// SelectSpace selects a space by name and always clears the file selection.
func (s *Store) SelectSpace(name string) error {
	s.mu.Lock()
	if _, ok := findSpace(s.spaces, name); !ok {
		s.mu.Unlock()
		return apperror.NewValidationError("space", fmt.Sprintf("unknown space %q", name))
	}
	prev := s.selection
	s.selection = entity.Selection{SpaceName: name}
	next := s.selection
	s.mu.Unlock()

	s.publish(prev, next)
	return nil
}

// SelectFile selects a file of the selected space. Files of other spaces
// are ignored and false is returned.
func (s *Store) SelectFile(name string) bool {
	s.mu.Lock()
	space, ok := findSpace(s.spaces, s.selection.SpaceName)
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, ok := space.FindFile(name); !ok {
		s.mu.Unlock()
		return false
	}
	prev := s.selection
	s.selection.FileName = name
	next := s.selection
	s.mu.Unlock()

	s.publish(prev, next)
	return true
}

// ClearFile returns to space-wide scope.
func (s *Store) ClearFile() {
	s.mu.Lock()
	prev := s.selection
	s.selection.FileName = ""
	next := s.selection
	s.mu.Unlock()

	s.publish(prev, next)
}

// Spaces returns a deep copy of the current snapshot.
func (s *Store) Spaces() []entity.Space {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Space, len(s.spaces))
	for i, sp := range s.spaces {
		out[i] = sp.Clone()
	}
	return out
}

func (s *Store) Space(name string) (entity.Space, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := findSpace(s.spaces, name)
	if !ok {
		return entity.Space{}, false
	}
	return sp.Clone(), true
}

// FileNames lists the file names of a space in server order.
func (s *Store) FileNames(space string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := findSpace(s.spaces, space)
	if !ok {
		return nil
	}
	names := make([]string, len(sp.Files))
	for i, f := range sp.Files {
		names[i] = f.Name
	}
	return names
}

func (s *Store) HasSpace(name string) bool {
	_, ok := s.Space(name)
	return ok
}

func (s *Store) Selection() entity.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

func (s *Store) SelectedSpace() (entity.Space, bool) {
	return s.Space(s.Selection().SpaceName)
}

func (s *Store) SelectedFile() (entity.File, bool) {
	sel := s.Selection()
	space, ok := s.Space(sel.SpaceName)
	if !ok || sel.FileName == "" {
		return entity.File{}, false
	}
	return space.FindFile(sel.FileName)
}

// Version increases with every installed snapshot.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) fail(ctx context.Context, message string, err error, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["error"] = err.Error()
	s.logger.Error(module, message, details)
	s.sink.Notify(ctx, notification.FromError(module, err, details))
}

func findSpace(spaces []entity.Space, name string) (entity.Space, bool) {
	if name == "" {
		return entity.Space{}, false
	}
	for _, sp := range spaces {
		if sp.Name == name {
			return sp, true
		}
	}
	return entity.Space{}, false
}

func toFiles(files []dto.FileDTO) []entity.File {
	out := make([]entity.File, len(files))
	for i, f := range files {
		out[i] = entity.File{Name: f.Name, IsIndexed: f.IsIndexed}
	}
	return out
}
