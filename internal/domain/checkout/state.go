// internal/domain/checkout/state.go
package checkout

// State is a step of a checkout attempt
type State string

const (
	StateIdle               State = "idle"
	StateValidating         State = "validating"
	StatePricing            State = "pricing"
	StateCreatingPreference State = "creating_preference"
	StateRedirecting        State = "redirecting"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"
)

// IsTerminal reports whether the attempt has ended
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Result is what a completed checkout hands back to the buyer
type Result struct {
	RedirectURL  string `json:"redirect_url"`
	PreferenceID string `json:"preference_id"`
	Reference    string `json:"reference"`
}

// Transition is one state change of an attempt. Err is set on Failed,
// Result on Completed.
type Transition struct {
	State  State
	Err    error
	Result *Result
}
