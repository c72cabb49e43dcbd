package model

// PlanPhase says whether a plan is ready to execute
type PlanPhase string

const (
	PhaseClarification PlanPhase = "CLARIFICATION"
	PhasePlan          PlanPhase = "PLAN"
)

// NarrativePlan is the reviewable output of one narrative turn. A plan is
// never mutated after it is returned; edits produce a new plan.
type NarrativePlan struct {
	Narrative   string     `json:"narrative"`
	Phase       PlanPhase  `json:"phase"`
	Summary     string     `json:"summary"`
	ModelDigest string     `json:"modelDigest"`
	Warnings    []string   `json:"warnings"`
	Actions     ActionList `json:"actions"`
}

// ExecutionStatus is the terminal state of one action
type ExecutionStatus string

const (
	StatusExecuted ExecutionStatus = "EXECUTED"
	StatusFailed   ExecutionStatus = "FAILED"
	StatusSkipped  ExecutionStatus = "SKIPPED"
)

// ExecutionResult is produced once per action during execution
type ExecutionResult struct {
	ActionID string          `json:"actionId"`
	Kind     ActionKind      `json:"kind"`
	Status   ExecutionStatus `json:"status"`
	Message  string          `json:"message"`
	Record   any             `json:"record,omitempty"`
}

// CreatedEntityReference tracks an entity resolved or created during the
// current execution pass, keyed by the action that produced it.
type CreatedEntityReference struct {
	ActionID   string     `json:"actionId"`
	EntityType EntityType `json:"entityType"`
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Created    bool       `json:"created"`
}

// ExecutionReport summarises one execution pass
type ExecutionReport struct {
	Summary         string                   `json:"summary"`
	Executed        int                      `json:"executed"`
	Failed          int                      `json:"failed"`
	Skipped         int                      `json:"skipped"`
	Results         []ExecutionResult        `json:"results"`
	CreatedEntities []CreatedEntityReference `json:"createdEntities"`
}
