package render

import "fmt"

// OutcomeStatus says whether a step produced what was asked for or a fallback.
type OutcomeStatus string

const (
	StatusOK       OutcomeStatus = "ok"
	StatusFallback OutcomeStatus = "fallback"
)

// Outcome records which path a degradable step took, so callers and tests can see
// why a fallback was used instead of only observing that nothing failed.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

func Ok() Outcome { return Outcome{Status: StatusOK} }

func Fallback(format string, args ...any) Outcome {
	return Outcome{Status: StatusFallback, Reason: fmt.Sprintf(format, args...)}
}

func (o Outcome) IsFallback() bool { return o.Status == StatusFallback }

func (o Outcome) String() string {
	if o.Reason == "" {
		return string(o.Status)
	}
	return fmt.Sprintf("%s (%s)", o.Status, o.Reason)
}
