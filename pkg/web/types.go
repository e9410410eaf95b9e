// Package web exposes the workflow and run-result REST API.
package web

// DispatchRequest is the body for manually dispatching a workflow run.
type DispatchRequest struct {
	Ref    string            `json:"ref,omitempty"`
	Inputs map[string]string `json:"inputs,omitempty" validate:"omitempty,dive,keys,min=1,endkeys"`
}

// DispatchResponse acknowledges a dispatched run. The run executes
// asynchronously; poll /runs/:runId for the result.
type DispatchResponse struct {
	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
}
