package projects

import (
	"context"
	"fmt"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hosted"
	"github.com/google/uuid"
)

const defaultTable = "projects"

// SnapshotStore persists a last-known-good copy of a user's project list so
// degraded mode has something to show. Saves are best-effort; loads that fail
// simply mean no fallback.
type SnapshotStore interface {
	Save(ctx context.Context, userID uuid.UUID, list []Project) error
	Load(ctx context.Context, userID uuid.UUID) ([]Project, error)
}

// Option customizes store construction.
type Option func(*Store)

// WithLogger overrides the logger used for swallowed fetch errors.
func WithLogger(logger hosted.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTable overrides the hosted table name.
func WithTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

// WithSnapshots enables the offline fallback snapshot.
func WithSnapshots(snaps SnapshotStore) Option {
	return func(s *Store) {
		s.snaps = snaps
	}
}

// Store owns the locally mirrored list of the current user's projects and
// performs CRUD against the hosted table. Mutations touch local state only
// after the remote call succeeds.
type Store struct {
	session *hosted.Store
	client  hosted.Client
	logger  hosted.Logger
	table   string
	snaps   SnapshotStore

	mu          sync.Mutex
	list        []Project
	loading     bool
	lastUserID  uuid.UUID
	lastConnErr bool
	seeded      bool
}

// New builds a project store bound to a session store. The session store is
// required; it supplies both the current user scope and the client handle.
func New(session *hosted.Store, opts ...Option) *Store {
	if session == nil {
		panic("projects: Store requires a non-nil session store")
	}

	s := &Store{
		session: session,
		client:  session.Client(),
		logger:  defLogger{},
		table:   defaultTable,
		loading: true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Watch fetches once and then refetches whenever the current user identity or
// the connection-error flag changes. The returned function cancels the watch.
func (s *Store) Watch(ctx context.Context) func() {
	go s.Fetch(ctx)

	return s.session.Subscribe(func(st hosted.State) {
		if st.Loading {
			return
		}

		var userID uuid.UUID
		if st.User != nil {
			userID = st.User.ID
		}

		s.mu.Lock()
		changed := !s.seeded || userID != s.lastUserID || st.ConnectionError != s.lastConnErr
		s.seeded = true
		s.lastUserID = userID
		s.lastConnErr = st.ConnectionError
		s.mu.Unlock()

		if changed {
			go s.Fetch(ctx)
		}
	})
}

// List returns a copy of the mirrored project list.
func (s *Store) List() []Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Project, len(s.list))
	copy(out, s.list)
	return out
}

// Loading reports whether the first fetch is still pending.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Fetch refreshes the mirrored list. It never fails observably: without an
// authenticated user or with the connection down it falls back to the offline
// snapshot (empty when none), and query errors degrade to an empty list.
func (s *Store) Fetch(ctx context.Context) {
	st := s.session.State()

	if st.User == nil {
		s.replaceList(nil)
		return
	}

	if st.ConnectionError {
		s.replaceList(s.loadSnapshot(ctx, st.User.ID))
		return
	}

	var list []Project
	err := s.client.From(s.table).
		Select().
		Eq("user_id", st.User.ID.String()).
		Order("created_at", true).
		Do(ctx, &list)
	if err != nil {
		s.logger.Error("projects fetch failed, falling back to empty list: %v", err)
		s.replaceList(nil)
		return
	}

	s.replaceList(list)
	s.saveSnapshot(ctx, st.User.ID, list)
}

// Create inserts a project for the current user. The user scope is forced
// server-side to the session user; callers cannot create on behalf of others.
func (s *Store) Create(ctx context.Context, input Input) (*Project, error) {
	st := s.session.State()

	if st.User == nil {
		return nil, hosted.ErrNotAuthenticated
	}
	if st.ConnectionError {
		return nil, hosted.ErrNoConnection
	}

	input = input.normalized()
	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid project")
	}

	record := Project{
		Name:        input.Name,
		Description: input.Description,
		Plan:        input.Plan,
		SocialLinks: input.SocialLinks,
		UserID:      st.User.ID,
	}

	var created Project
	err := s.client.From(s.table).
		Insert(record).
		Single().
		Do(ctx, &created)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.list = append([]Project{created}, s.list...)
	s.mu.Unlock()

	return &created, nil
}

// Update applies a partial update by id, replacing the matching local record
// only when the remote call succeeds.
func (s *Store) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*Project, error) {
	if s.session.State().ConnectionError {
		return nil, hosted.ErrNoConnection
	}

	if len(fields) == 0 {
		return nil, goerrors.New("no fields to update", goerrors.CategoryBadInput)
	}

	var updated Project
	err := s.client.From(s.table).
		Update(fields).
		Eq("id", id.String()).
		Single().
		Do(ctx, &updated)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range s.list {
		if s.list[i].ID == id {
			s.list[i] = updated
			break
		}
	}
	s.mu.Unlock()

	return &updated, nil
}

// Delete removes the remote record by id, dropping it from the local list
// only when the remote call succeeds.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if s.session.State().ConnectionError {
		return hosted.ErrNoConnection
	}

	err := s.client.From(s.table).
		Delete().
		Eq("id", id.String()).
		Do(ctx, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	kept := s.list[:0]
	for _, p := range s.list {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.list = kept
	s.mu.Unlock()

	return nil
}

func (s *Store) replaceList(list []Project) {
	s.mu.Lock()
	s.list = list
	s.loading = false
	s.mu.Unlock()
}

func (s *Store) loadSnapshot(ctx context.Context, userID uuid.UUID) []Project {
	if s.snaps == nil {
		return nil
	}

	list, err := s.snaps.Load(ctx, userID)
	if err != nil {
		s.logger.Debug("offline snapshot unavailable: %v", err)
		return nil
	}
	return list
}

func (s *Store) saveSnapshot(ctx context.Context, userID uuid.UUID, list []Project) {
	if s.snaps == nil {
		return
	}

	if err := s.snaps.Save(ctx, userID, list); err != nil {
		s.logger.Warn("offline snapshot save failed: %v", err)
	}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] PROJECTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] PROJECTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] PROJECTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] PROJECTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
