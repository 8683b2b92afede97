// Package metrics computes DORA-style delivery metrics over version
// timeline snapshots. Everything in this package is a pure function over
// an in-memory entry slice: no mutation, no I/O, safe for any number of
// concurrent readers.
package metrics

import (
	"sort"
	"time"

	"github.com/apptrail-sh/control-plane/pkg/history"
)

// Duration returns an entry's deployment duration in seconds. The stored
// duration wins; otherwise it is derived from the started/completed
// timestamps. Entries without either are excluded from duration
// statistics (ok == false).
func Duration(e *history.Entry) (int64, bool) {
	if e.DeploymentDurationSeconds != nil {
		return *e.DeploymentDurationSeconds, true
	}
	if e.DeploymentStartedAt != nil && e.DeploymentCompletedAt != nil {
		return int64(e.DeploymentCompletedAt.Sub(*e.DeploymentStartedAt).Seconds()), true
	}
	return 0, false
}

// IsFailed reports whether the entry's deployment failed.
func IsFailed(e *history.Entry) bool {
	return e.DeploymentPhase != nil && *e.DeploymentPhase == history.PhaseFailed
}

// IsRollback reports whether the entry moved to a lexicographically
// smaller version. This is a plain string comparison, not semver-aware:
// "2.0.0" is NOT smaller than "10.0.0" here. Downstream rollback counts
// depend on this exact behavior, so it must not be "fixed" quietly.
func IsRollback(e *history.Entry) bool {
	return e.PreviousVersion != "" && e.CurrentVersion < e.PreviousVersion
}

// DurationSummary is the statistical summary of a duration population.
type DurationSummary struct {
	AverageSeconds float64 `json:"averageSeconds"`
	MedianSeconds  int64   `json:"medianSeconds"`
	P95Seconds     int64   `json:"p95Seconds"`
	P99Seconds     int64   `json:"p99Seconds"`
	MinSeconds     int64   `json:"minSeconds"`
	MaxSeconds     int64   `json:"maxSeconds"`
	SampleSize     int     `json:"sampleSize"`
}

// LeadTime summarizes deployment durations across the entries. An empty
// duration population yields the zero summary, never an error.
func LeadTime(entries []history.Entry) DurationSummary {
	var durations []int64
	for i := range entries {
		if d, ok := Duration(&entries[i]); ok {
			durations = append(durations, d)
		}
	}
	return summarize(durations)
}

// RecoverySummary reports MTTR statistics. TotalRecoveries may be smaller
// than TotalFailures: a failure with no completion inside the observed
// window never closes.
type RecoverySummary struct {
	TotalFailures   int     `json:"totalFailures"`
	TotalRecoveries int     `json:"totalRecoveries"`
	AverageSeconds  float64 `json:"averageSeconds"`
	MedianSeconds   int64   `json:"medianSeconds"`
	P95Seconds      int64   `json:"p95Seconds"`
}

// MTTR pairs failures with the next completion per workload instance.
//
// Each instance's entries are walked chronologically with a single
// pending-failure slot: a failed phase opens the slot only when it is
// empty (consecutive failures coalesce into one), and a completed phase
// closes it as one recovery measured from the failure's detection time.
func MTTR(entries []history.Entry) RecoverySummary {
	byInstance := make(map[uint][]history.Entry)
	for _, e := range entries {
		byInstance[e.WorkloadInstanceID] = append(byInstance[e.WorkloadInstanceID], e)
	}

	var totalFailures int
	var recoveries []int64

	for _, group := range byInstance {
		sort.Slice(group, func(i, j int) bool {
			if !group[i].DetectedAt.Equal(group[j].DetectedAt) {
				return group[i].DetectedAt.Before(group[j].DetectedAt)
			}
			return group[i].ID < group[j].ID
		})

		var pending *history.Entry
		for i := range group {
			e := &group[i]
			switch {
			case IsFailed(e):
				if pending == nil {
					pending = e
					totalFailures++
				}
			case e.DeploymentPhase != nil && *e.DeploymentPhase == history.PhaseCompleted:
				if pending != nil {
					recoveredAt := e.DetectedAt
					if e.DeploymentCompletedAt != nil {
						recoveredAt = *e.DeploymentCompletedAt
					}
					recoveries = append(recoveries, int64(recoveredAt.Sub(pending.DetectedAt).Seconds()))
					pending = nil
				}
			}
		}
	}

	summary := summarize(recoveries)
	return RecoverySummary{
		TotalFailures:   totalFailures,
		TotalRecoveries: len(recoveries),
		AverageSeconds:  summary.AverageSeconds,
		MedianSeconds:   summary.MedianSeconds,
		P95Seconds:      summary.P95Seconds,
	}
}

// ChangeFailureRate returns the percentage of failed deployments, 0 for an
// empty population.
func ChangeFailureRate(entries []history.Entry) float64 {
	if len(entries) == 0 {
		return 0
	}
	var failed int
	for i := range entries {
		if IsFailed(&entries[i]) {
			failed++
		}
	}
	return float64(failed) / float64(len(entries)) * 100
}

// DeploymentFrequency returns deployments per day over the range. Ranges
// shorter than a day count as one day.
func DeploymentFrequency(total int, start, end time.Time) float64 {
	days := int(end.Sub(start).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return float64(total) / float64(days)
}

// summarize computes the duration summary over an unsorted population.
func summarize(durations []int64) DurationSummary {
	if len(durations) == 0 {
		return DurationSummary{}
	}

	sorted := make([]int64, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, d := range sorted {
		sum += d
	}

	return DurationSummary{
		AverageSeconds: float64(sum) / float64(len(sorted)),
		MedianSeconds:  percentile(sorted, 0.5),
		P95Seconds:     percentile(sorted, 0.95),
		P99Seconds:     percentile(sorted, 0.99),
		MinSeconds:     sorted[0],
		MaxSeconds:     sorted[len(sorted)-1],
		SampleSize:     len(sorted),
	}
}

// percentile selects by nearest rank: floor(n × p), clamped to n−1, into
// the ascending-sorted population. No interpolation.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
