// Package event defines the deployment event payload reported by fleet
// agents and its validation rules. The field layout matches what the agent
// publishes; changing a JSON tag here breaks every deployed agent.
package event

import "time"

type Kind string

type Outcome string

type WorkloadKind string

type Phase string

const (
	KindDeployment Kind = "DEPLOYMENT"

	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"

	WorkloadKindDeployment  WorkloadKind = "DEPLOYMENT"
	WorkloadKindStatefulSet WorkloadKind = "STATEFULSET"
	WorkloadKindDaemonSet   WorkloadKind = "DAEMONSET"
	WorkloadKindJob         WorkloadKind = "JOB"
	WorkloadKindCronJob     WorkloadKind = "CRONJOB"

	PhasePending     Phase = "PENDING"
	PhaseProgressing Phase = "PROGRESSING"
	PhaseCompleted   Phase = "COMPLETED"
	PhaseFailed      Phase = "FAILED"
)

// Source identifies the reporting agent.
type Source struct {
	ClusterID    string `json:"clusterId"`
	AgentVersion string `json:"agentVersion"`
}

// WorkloadRef names the Kubernetes workload the event is about.
type WorkloadRef struct {
	Kind      WorkloadKind `json:"kind"`
	Name      string       `json:"name"`
	Namespace string       `json:"namespace"`
}

// Revision carries the observed version transition. Previous is empty for
// the first observation of a workload.
type Revision struct {
	Current  string `json:"current"`
	Previous string `json:"previous,omitempty"`
}

// ErrorDetail describes a failure reported alongside a FAILED phase.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// DeploymentEvent is one deployment observation from a fleet agent.
type DeploymentEvent struct {
	EventID     string            `json:"eventId"`
	OccurredAt  time.Time         `json:"occurredAt"`
	Environment string            `json:"environment"`
	Source      Source            `json:"source"`
	Workload    WorkloadRef       `json:"workload"`
	Labels      map[string]string `json:"labels"`
	Kind        Kind              `json:"kind"`
	Outcome     *Outcome          `json:"outcome,omitempty"`
	Revision    *Revision         `json:"revision,omitempty"`
	Phase       *Phase            `json:"phase,omitempty"`
	Error       *ErrorDetail      `json:"error,omitempty"`
}

// ErrorMessage returns the event's error message, or "" when none was
// reported.
func (e *DeploymentEvent) ErrorMessage() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Message
}

// Label returns the value for key, or "" when absent.
func (e *DeploymentEvent) Label(key string) string {
	if e.Labels == nil {
		return ""
	}
	return e.Labels[key]
}
