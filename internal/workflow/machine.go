package workflow

import "fmt"

// Step identifies one node of the per-accession extraction graph.
type Step string

const (
	StepCollectEvidence Step = "collect_evidence"
	StepExtractFields   Step = "extract_fields"
	StepRoute           Step = "route"
	StepEscalate        Step = "escalate"
	StepResolveRuns     Step = "resolve_runs"
	StepPersist         Step = "persist"
	StepDone            Step = "done"
)

// Terminal reports whether the step ends the graph run.
func (s Step) Terminal() bool {
	return s == StepDone
}

// Signal is the outcome a completed step reports to the transition table.
type Signal string

const (
	// SignalAdvance moves to the next step in the happy path.
	SignalAdvance Signal = "advance"
	// SignalRetry loops back to evidence collection for another pass.
	SignalRetry Signal = "retry"
	// SignalEscalate hands the run to the level escalator.
	SignalEscalate Signal = "escalate"
)

type transitionKey struct {
	step   Step
	signal Signal
}

// transitions is the complete legal edge set of the graph. Evidence
// collection, extraction, and routing form the retry loop; the escalator
// re-enters the loop at the secondary level; resolution and persistence
// are strictly ordered tail steps.
var transitions = map[transitionKey]Step{
	{StepCollectEvidence, SignalAdvance}: StepExtractFields,
	{StepExtractFields, SignalAdvance}:   StepRoute,
	{StepRoute, SignalRetry}:             StepCollectEvidence,
	{StepRoute, SignalEscalate}:          StepEscalate,
	{StepRoute, SignalAdvance}:           StepResolveRuns,
	{StepEscalate, SignalAdvance}:        StepCollectEvidence,
	{StepResolveRuns, SignalAdvance}:     StepPersist,
	{StepPersist, SignalAdvance}:         StepDone,
}

// Next resolves the step that follows when the current step reports the
// given signal. Illegal edges return a TransitionError.
func Next(step Step, signal Signal) (Step, error) {
	next, ok := transitions[transitionKey{step: step, signal: signal}]
	if !ok {
		return "", &TransitionError{Step: step, Signal: signal}
	}
	return next, nil
}

// TransitionError reports an edge the graph does not define.
type TransitionError struct {
	Step   Step
	Signal Signal
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: no edge from step %q on signal %q", e.Step, e.Signal)
}
