package controller

// State is the UI state of the upload form.
type State int

const (
	StateIdle State = iota
	StateFileSelected
	StateSubmitting
	StateResultsShown
	StateErrorShown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateFileSelected:
		return "FileSelected"
	case StateSubmitting:
		return "Submitting"
	case StateResultsShown:
		return "ResultsShown"
	case StateErrorShown:
		return "ErrorShown"
	default:
		return "Unknown"
	}
}

// CommandKind identifies a client-side effect.
type CommandKind string

const (
	// CommandUpload asks the client to upload the file it tagged Ref and
	// report it under Op.
	CommandUpload CommandKind = "upload"

	// CommandScroll asks the client to smoothly scroll Target into view.
	CommandScroll CommandKind = "scroll"
)

// Command is a client-side effect queued by the controller.
type Command struct {
	Kind   CommandKind `json:"t"`
	Op     uint64      `json:"op,omitempty"`
	Ref    uint64      `json:"ref,omitempty"`
	Target string      `json:"target,omitempty"`
}

// Outcome classifies how a submission ended, for metrics.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeApplicationError Outcome = "application_error"
	OutcomeTransportError   Outcome = "transport_error"
	OutcomeStale            Outcome = "stale"
)

// Observer receives controller events. Implementations must be safe for
// concurrent use across sessions.
type Observer interface {
	ValidationRejected(code string)
	SubmissionFinished(outcome Outcome, demo bool)
}

type nopObserver struct{}

func (nopObserver) ValidationRejected(string)         {}
func (nopObserver) SubmissionFinished(Outcome, bool) {}
