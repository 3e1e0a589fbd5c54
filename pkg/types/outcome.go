package types

// OutcomeState classifies an adapter result.
type OutcomeState int

const (
	// OutcomeSuccess means the action finished and may carry output.
	OutcomeSuccess OutcomeState = iota
	// OutcomeFailure means the action failed with a structured header
	// and captured output.
	OutcomeFailure
	// OutcomePending means execution was handed off to an external
	// collaborator (Migration query) and the engine will not observe
	// completion itself.
	OutcomePending
)

// Outcome is the normalized result every adapter returns. Adapters never
// mutate store state; the scheduler translates outcomes into transitions.
type Outcome struct {
	State  OutcomeState
	Header string
	Output string

	// Detail carries success-side information such as a build's resolved
	// output directory.
	Detail string
}

// Success returns a successful outcome with optional detail.
func Success(detail string) Outcome {
	return Outcome{State: OutcomeSuccess, Detail: detail}
}

// Failure returns a failed outcome with a header and captured output.
func Failure(header, output string) Outcome {
	return Outcome{State: OutcomeFailure, Header: header, Output: output}
}

// Pending returns an outcome for work deferred to an external owner.
func Pending() Outcome {
	return Outcome{State: OutcomePending}
}
