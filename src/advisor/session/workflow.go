package session

import "time"

// WorkflowStatus enumerates lifecycle states for multi-turn processes.
type WorkflowStatus string

const (
	WorkflowActive    WorkflowStatus = "active"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowAborted   WorkflowStatus = "aborted"
)

// Workflow is a multi-step process spanning several pipeline invocations
// within one session.
type Workflow struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Step      string         `json:"step"`
	Payload   map[string]any `json:"payload,omitempty"`
	Status    WorkflowStatus `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Known workflow kinds with enforced step transitions.
const (
	WorkflowLeaveRequest = "leave_request"
)

// Leave request step names.
const (
	StepDraft     = "draft"
	StepSubmitted = "submitted"
	StepReview    = "review"
	StepApproved  = "approved"
	StepRejected  = "rejected"
)

type workflowSpec struct {
	initial     string
	transitions map[string][]string
}

// Kinds without a spec are free-ordered but still status-guarded.
var workflowSpecs = map[string]workflowSpec{
	WorkflowLeaveRequest: {
		initial: StepDraft,
		transitions: map[string][]string{
			StepDraft:     {StepSubmitted},
			StepSubmitted: {StepReview},
			StepReview:    {StepApproved, StepRejected},
		},
	},
}

func initialStep(kind string) string {
	if spec, ok := workflowSpecs[kind]; ok {
		return spec.initial
	}
	return "started"
}

func transitionAllowed(kind, from, to string) bool {
	spec, ok := workflowSpecs[kind]
	if !ok {
		return true
	}
	for _, next := range spec.transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
