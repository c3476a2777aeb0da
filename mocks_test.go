package hosted_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-hosted"
)

// fakeClient is a controllable hosted.Client: tests script the probe result
// and drive auth events by hand.
type fakeClient struct {
	mu       sync.Mutex
	handlers []hosted.AuthChangeHandler

	sessionFn  func(ctx context.Context) (*hosted.Session, error)
	subErr     error
	signInErr  error
	signUpErr  error
	signOutErr error
	resetErr   error

	profile    *hosted.Profile
	profileErr error

	probeCalls   int32
	signOutCalls int32
}

var _ hosted.Client = (*fakeClient)(nil)

func (f *fakeClient) GetSession(ctx context.Context) (*hosted.Session, error) {
	atomic.AddInt32(&f.probeCalls, 1)
	if f.sessionFn != nil {
		return f.sessionFn(ctx)
	}
	return nil, nil
}

func (f *fakeClient) OnAuthStateChange(fn hosted.AuthChangeHandler) (hosted.Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.mu.Lock()
	f.handlers = append(f.handlers, fn)
	f.mu.Unlock()
	return fakeSubscription{}, nil
}

// Emit delivers an auth event to every registered handler, standing in for
// the service pushing a state change.
func (f *fakeClient) Emit(event hosted.AuthEvent) {
	f.mu.Lock()
	handlers := append([]hosted.AuthChangeHandler{}, f.handlers...)
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(event)
	}
}

func (f *fakeClient) SignInWithPassword(ctx context.Context, email, password string) error {
	return f.signInErr
}

func (f *fakeClient) SignUp(ctx context.Context, payload hosted.SignUpPayload) error {
	return f.signUpErr
}

func (f *fakeClient) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error) {
	return "https://service.example.com/auth/v1/authorize?provider=" + provider, nil
}

func (f *fakeClient) SignOut(ctx context.Context) error {
	atomic.AddInt32(&f.signOutCalls, 1)
	return f.signOutErr
}

func (f *fakeClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return f.resetErr
}

func (f *fakeClient) From(table string) hosted.QueryBuilder {
	return &fakeQuery{client: f}
}

type fakeSubscription struct{}

func (fakeSubscription) Unsubscribe() {}

// fakeQuery only needs to satisfy the profile fetch.
type fakeQuery struct {
	client *fakeClient
}

func (q *fakeQuery) Select(columns ...string) hosted.QueryBuilder { return q }

func (q *fakeQuery) Insert(record any) hosted.QueryBuilder { return q }

func (q *fakeQuery) Update(fields map[string]any) hosted.QueryBuilder { return q }

func (q *fakeQuery) Delete() hosted.QueryBuilder { return q }

func (q *fakeQuery) Eq(column string, value any) hosted.QueryBuilder { return q }

func (q *fakeQuery) Order(column string, desc bool) hosted.QueryBuilder { return q }

func (q *fakeQuery) Single() hosted.QueryBuilder { return q }

func (q *fakeQuery) Do(ctx context.Context, dest any) error {
	if q.client.profileErr != nil {
		return q.client.profileErr
	}
	if target, ok := dest.(*hosted.Profile); ok && q.client.profile != nil {
		*target = *q.client.profile
	}
	return nil
}
