package hosted

import (
	"context"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const defaultProfileTable = "profiles"

// Option customizes store construction.
type Option func(*Store)

// WithLogger overrides the logger used for degraded-mode and best-effort
// failures.
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProfileTable overrides the table the best-effort profile fetch reads.
func WithProfileTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.profileTable = table
		}
	}
}

// Store owns the consolidated session view and drives the bootstrap state
// machine: config check, session probe raced against a deadline, then a
// persistent auth-event subscription. It is the single writer of its state;
// consumers read snapshots via State or Subscribe.
type Store struct {
	client       Client
	config       Config
	logger       Logger
	profileTable string

	mu       sync.Mutex
	state    State
	started  bool
	settled  bool
	closed   bool
	sub      Subscription
	watchers map[int]func(State)
	nextID   int
}

// New builds a Store around the given client handle. The client is required:
// passing nil is programmer misuse and fails fast at construction time.
func New(client Client, cfg Config, opts ...Option) *Store {
	if client == nil {
		panic("hosted: Store requires a non-nil Client")
	}

	s := &Store{
		client:       client,
		config:       cfg,
		logger:       defLogger{},
		profileTable: defaultProfileTable,
		state:        State{Loading: true},
		watchers:     map[int]func(State){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start runs the bootstrap sequence. The auth-event subscription is
// established first so events may land before, during, or after the probe;
// the probe itself runs on its own goroutine. Start is idempotent.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	if !s.listen() {
		return
	}

	if !s.config.Configured() {
		s.logger.Warn("connection settings missing or placeholder, entering local-only mode")
		s.settle(func(st *State) {
			st.Loading = false
			st.ConnectionError = true
		})
		return
	}

	go s.probe(ctx)
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Client exposes the underlying handle so sibling stores can share it.
func (s *Store) Client() Client {
	return s.client
}

// Subscribe registers a watcher invoked with a snapshot after every state
// change. The returned function cancels the registration.
func (s *Store) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	id := s.nextID
	s.nextID++
	s.watchers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// Close tears the store down: the liveness flag drops so any in-flight
// asynchronous resolution becomes a no-op, and the event subscription is
// cancelled.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.watchers = map[int]func(State){}
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// --- bootstrap ---

// listen establishes the auth-event subscription. Failure counts as a
// connection failure and settles the bootstrap; there is no point probing a
// service we cannot hear events from.
func (s *Store) listen() bool {
	sub, err := s.client.OnAuthStateChange(s.handleAuthEvent)
	if err != nil {
		s.logger.Error("auth subscription setup failed: %v", err)
		s.settle(func(st *State) {
			st.Loading = false
			st.ConnectionError = true
		})
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return false
	}
	s.sub = sub
	s.mu.Unlock()
	return true
}

func (s *Store) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.timeout())
	defer cancel()

	type probeResult struct {
		session *Session
		err     error
	}

	resCh := make(chan probeResult, 1)
	go func() {
		session, err := s.client.GetSession(ctx)
		resCh <- probeResult{session: session, err: err}
	}()

	select {
	case res := <-resCh:
		s.settleProbe(res.session, res.err)
	case <-ctx.Done():
		// the in-flight retrieval, if it resolves later, lands in the
		// buffered channel and is dropped; the settled flag keeps it from
		// clobbering the timed-out state
		s.settleTimeout()
	}
}

func (s *Store) settleProbe(session *Session, err error) {
	if err != nil {
		if s.settle(func(st *State) {
			st.Session = nil
			st.User = nil
			st.Loading = false
			st.ConnectionError = true
		}) {
			s.logger.Warn("session probe failed: %v", err)
		}
		return
	}

	var user *User
	if session != nil {
		user = session.User
	}

	ok := s.settle(func(st *State) {
		st.Session = session
		st.User = user
		st.Loading = false
		st.ConnectionError = false
	})

	if ok && user != nil {
		go s.fetchProfile(context.Background(), user.ID)
	}
}

func (s *Store) settleTimeout() {
	if s.settle(func(st *State) {
		st.Loading = false
		st.ConnectionError = true
	}) {
		s.logger.Warn("%s", ErrBootstrapTimeout.Error())
	}
}

// settle applies a bootstrap outcome exactly once: check, flag and mutation
// share one critical section so a probe result can never clobber a state an
// auth event already established.
func (s *Store) settle(mutate func(*State)) bool {
	s.mu.Lock()
	if s.closed || s.settled {
		s.mu.Unlock()
		return false
	}
	s.settled = true

	mutate(&s.state)
	snapshot := s.state

	watchers := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(snapshot)
	}
	return true
}

// --- listening ---

func (s *Store) handleAuthEvent(ev AuthEvent) {
	// an event landing mid-probe is authoritative: settle now so a later
	// probe result is dropped
	s.mu.Lock()
	s.settled = true
	s.mu.Unlock()

	var user *User
	if ev.Session != nil {
		user = ev.Session.User
	}

	var fetchFor *uuid.UUID
	ok := s.apply(func(st *State) {
		st.Session = ev.Session
		st.User = user
		st.Loading = false
		if user == nil {
			st.Profile = nil
		} else if !st.ConnectionError {
			id := user.ID
			fetchFor = &id
		}
	})

	if ok && fetchFor != nil {
		go s.fetchProfile(context.Background(), *fetchFor)
	}
}

// fetchProfile is best-effort: failure leaves the profile untouched and is
// only logged. It never affects Loading.
func (s *Store) fetchProfile(ctx context.Context, userID uuid.UUID) {
	var profile Profile
	err := s.client.From(s.profileTable).
		Select().
		Eq("id", userID.String()).
		Single().
		Do(ctx, &profile)
	if err != nil {
		s.logger.Debug("profile fetch for %s skipped: %v", userID, err)
		return
	}

	s.apply(func(st *State) {
		// a sign-out or user switch may have landed while we were fetching
		if st.User == nil || st.User.ID != userID {
			return
		}
		st.Profile = &profile
	})
}

// apply mutates the state under lock and notifies watchers with a snapshot.
// Returns false when the store is closed, in which case nothing ran.
func (s *Store) apply(mutate func(*State)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	mutate(&s.state)
	snapshot := s.state

	watchers := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(snapshot)
	}
	return true
}

func (s *Store) connectionError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ConnectionError
}

// --- credential operations ---

type signInPayload struct {
	Email    string
	Password string
}

func (p signInPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
	)
}

// SignIn delegates password sign-in to the hosted service. While the store is
// in connection-error mode it short-circuits without touching the network.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	if err := (signInPayload{Email: email, Password: password}).Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid sign-in payload")
	}

	if s.connectionError() {
		return ErrNoConnection
	}

	return s.client.SignInWithPassword(ctx, email, password)
}

func (p SignUpPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&p.FullName, validation.Length(0, 200)),
	)
}

// SignUp registers a new identity with the hosted service.
func (s *Store) SignUp(ctx context.Context, payload SignUpPayload) error {
	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid sign-up payload")
	}

	if s.connectionError() {
		return ErrNoConnection
	}

	return s.client.SignUp(ctx, payload)
}

// SignInWithOAuth starts the OAuth redirect flow for the named provider,
// returning the URL the user should be sent to.
func (s *Store) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error) {
	if s.connectionError() {
		return "", ErrNoConnection
	}
	return s.client.SignInWithOAuth(ctx, provider, redirectTo)
}

// SignInWithGoogle is a convenience wrapper for the Google provider.
func (s *Store) SignInWithGoogle(ctx context.Context, redirectTo string) (string, error) {
	return s.SignInWithOAuth(ctx, "google", redirectTo)
}

// ResetPassword asks the service to start a password recovery flow.
func (s *Store) ResetPassword(ctx context.Context, email, redirectTo string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email")
	}

	if s.connectionError() {
		return ErrNoConnection
	}

	return s.client.ResetPasswordForEmail(ctx, email, redirectTo)
}

// SignOut clears the local session. In connection-error mode the remote call
// is skipped entirely. On the remote path local state is cleared regardless
// of the call's outcome: sign-out intent always wins.
func (s *Store) SignOut(ctx context.Context) error {
	if s.connectionError() {
		s.clearLocal()
		return nil
	}

	err := s.client.SignOut(ctx)
	s.clearLocal()
	return err
}

func (s *Store) clearLocal() {
	s.apply(func(st *State) {
		st.User = nil
		st.Profile = nil
		st.Session = nil
		st.Loading = false
	})
}
