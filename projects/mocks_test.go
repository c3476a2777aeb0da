package projects_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-hosted"
	"github.com/goliatone/go-hosted/projects"
	"github.com/google/uuid"
)

// recordingClient is a hosted.Client whose queries are captured for
// inspection. Each table gets its own scripted response.
type recordingClient struct {
	mu      sync.Mutex
	handler hosted.AuthChangeHandler
	queries []*recordingQuery

	sessionFn func(ctx context.Context) (*hosted.Session, error)

	// scripted per-table responses
	listResult   []projects.Project
	listErr      error
	singleResult *projects.Project
	singleErr    error
	deleteErr    error
}

var _ hosted.Client = (*recordingClient)(nil)

func (c *recordingClient) GetSession(ctx context.Context) (*hosted.Session, error) {
	if c.sessionFn != nil {
		return c.sessionFn(ctx)
	}
	return nil, nil
}

func (c *recordingClient) OnAuthStateChange(fn hosted.AuthChangeHandler) (hosted.Subscription, error) {
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
	return nopSubscription{}, nil
}

func (c *recordingClient) Emit(event hosted.AuthEvent) {
	c.mu.Lock()
	fn := c.handler
	c.mu.Unlock()
	if fn != nil {
		fn(event)
	}
}

func (c *recordingClient) SignInWithPassword(ctx context.Context, email, password string) error {
	return nil
}

func (c *recordingClient) SignUp(ctx context.Context, payload hosted.SignUpPayload) error {
	return nil
}

func (c *recordingClient) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error) {
	return "", nil
}

func (c *recordingClient) SignOut(ctx context.Context) error { return nil }

func (c *recordingClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return nil
}

func (c *recordingClient) From(table string) hosted.QueryBuilder {
	q := &recordingQuery{client: c, table: table}
	c.mu.Lock()
	c.queries = append(c.queries, q)
	c.mu.Unlock()
	return q
}

// queriesFor returns the captured queries against a table, oldest first.
func (c *recordingClient) queriesFor(table string) []*recordingQuery {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*recordingQuery
	for _, q := range c.queries {
		if q.table == table {
			out = append(out, q)
		}
	}
	return out
}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() {}

// recordingQuery remembers everything the builder was told.
type recordingQuery struct {
	client *recordingClient
	table  string

	op       string
	inserted any
	updated  map[string]any
	filters  map[string]any
	orderCol string
	desc     bool
	single   bool
}

func (q *recordingQuery) Select(columns ...string) hosted.QueryBuilder {
	q.op = "select"
	return q
}

func (q *recordingQuery) Insert(record any) hosted.QueryBuilder {
	q.op = "insert"
	q.inserted = record
	return q
}

func (q *recordingQuery) Update(fields map[string]any) hosted.QueryBuilder {
	q.op = "update"
	q.updated = fields
	return q
}

func (q *recordingQuery) Delete() hosted.QueryBuilder {
	q.op = "delete"
	return q
}

func (q *recordingQuery) Eq(column string, value any) hosted.QueryBuilder {
	if q.filters == nil {
		q.filters = map[string]any{}
	}
	q.filters[column] = value
	return q
}

func (q *recordingQuery) Order(column string, desc bool) hosted.QueryBuilder {
	q.orderCol = column
	q.desc = desc
	return q
}

func (q *recordingQuery) Single() hosted.QueryBuilder {
	q.single = true
	return q
}

func (q *recordingQuery) Do(ctx context.Context, dest any) error {
	if q.table == "profiles" {
		// the session store's best-effort profile fetch lands here; serve
		// nothing so it stays out of the way
		return nil
	}

	switch q.op {
	case "select":
		if q.client.listErr != nil {
			return q.client.listErr
		}
		if target, ok := dest.(*[]projects.Project); ok {
			*target = append([]projects.Project{}, q.client.listResult...)
		}
		return nil
	case "insert", "update":
		if q.client.singleErr != nil {
			return q.client.singleErr
		}
		if target, ok := dest.(*projects.Project); ok && q.client.singleResult != nil {
			*target = *q.client.singleResult
		}
		return nil
	case "delete":
		return q.client.deleteErr
	}
	return nil
}

// memorySnapshots is an in-memory projects.SnapshotStore.
type memorySnapshots struct {
	mu    sync.Mutex
	saved map[uuid.UUID][]projects.Project
	err   error
}

var _ projects.SnapshotStore = (*memorySnapshots)(nil)

func (m *memorySnapshots) Save(ctx context.Context, userID uuid.UUID, list []projects.Project) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[uuid.UUID][]projects.Project{}
	}
	m.saved[userID] = append([]projects.Project{}, list...)
	return nil
}

func (m *memorySnapshots) Load(ctx context.Context, userID uuid.UUID) ([]projects.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[userID], nil
}
