package event

import (
	"fmt"
	"strings"
)

// ValidationError reports the required fields an event is missing.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid deployment event: missing %s", strings.Join(e.Fields, ", "))
}

// Validate checks the required fields of a deployment event. A blank field
// means the agent sent a malformed payload; the caller decides whether to
// drop or retry, the event is never silently accepted.
func (e *DeploymentEvent) Validate() error {
	var missing []string

	if strings.TrimSpace(e.EventID) == "" {
		missing = append(missing, "eventId")
	}
	if strings.TrimSpace(e.Source.ClusterID) == "" {
		missing = append(missing, "source.clusterId")
	}
	if strings.TrimSpace(e.Environment) == "" {
		missing = append(missing, "environment")
	}
	if strings.TrimSpace(e.Workload.Name) == "" {
		missing = append(missing, "workload.name")
	}
	if strings.TrimSpace(e.Workload.Namespace) == "" {
		missing = append(missing, "workload.namespace")
	}
	if e.Revision != nil && strings.TrimSpace(e.Revision.Current) == "" {
		missing = append(missing, "revision.current")
	}

	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}
