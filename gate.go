package hosted

// GateOutcome is the render decision produced by the access gate.
type GateOutcome int

const (
	// GateLoading blocks everything while the bootstrap is still running.
	GateLoading GateOutcome = iota
	// GateConnectionChoice offers the degraded-mode choice screen: continue
	// offline or try authentication.
	GateConnectionChoice
	// GateContent lets the protected content through.
	GateContent
	// GateAuthPrompt shows the authentication prompt.
	GateAuthPrompt
)

func (o GateOutcome) String() string {
	switch o {
	case GateLoading:
		return "loading"
	case GateConnectionChoice:
		return "connection-choice"
	case GateContent:
		return "content"
	case GateAuthPrompt:
		return "auth-prompt"
	default:
		return "unknown"
	}
}

// GateFlags are the session-local UI flags feeding the gate. They are never
// persisted; each surface (CLI session, HTTP request chain) carries its own.
type GateFlags struct {
	ShowAuthPrompt bool
	AuthDismissed  bool
}

// ContinueOffline records the explicit opt-out from the connection-error
// choice screen.
func (f *GateFlags) ContinueOffline() {
	f.AuthDismissed = true
}

// RequestAuth records the "try authentication" choice.
func (f *GateFlags) RequestAuth() {
	f.ShowAuthPrompt = true
}

// DismissAuthPrompt handles the prompt's close action: both flags move in the
// same step so the next decision lands on content, not back on the prompt.
func (f *GateFlags) DismissAuthPrompt() {
	f.ShowAuthPrompt = false
	f.AuthDismissed = true
}

// Decide maps a state snapshot plus UI flags to exactly one outcome. The
// checks run in a fixed order and the first match wins:
//
//  1. still loading: loading placeholder, nothing else renders
//  2. connection error, neither dismissed nor explicitly authenticating:
//     the choice screen
//  3. signed-in user: content
//  4. dismissed and not re-prompting: content, the explicit opt-out path
//  5. otherwise: the authentication prompt
func Decide(state State, flags GateFlags) GateOutcome {
	if state.Loading {
		return GateLoading
	}

	if state.ConnectionError && !flags.AuthDismissed && !flags.ShowAuthPrompt {
		return GateConnectionChoice
	}

	if state.User != nil {
		return GateContent
	}

	if flags.AuthDismissed && !flags.ShowAuthPrompt {
		return GateContent
	}

	return GateAuthPrompt
}
