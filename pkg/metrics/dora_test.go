package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/apptrail-sh/control-plane/pkg/history"
)

func durationEntry(seconds int64) history.Entry {
	return history.Entry{DeploymentDurationSeconds: &seconds}
}

func phasedEntry(instanceID uint, phase history.Phase, detectedAt time.Time) history.Entry {
	p := phase
	return history.Entry{
		WorkloadInstanceID: instanceID,
		DeploymentPhase:    &p,
		DetectedAt:         detectedAt,
	}
}

func TestDurationPrefersStoredValue(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)
	stored := int64(42)

	e := history.Entry{
		DeploymentDurationSeconds: &stored,
		DeploymentStartedAt:       &start,
		DeploymentCompletedAt:     &end,
	}
	d, ok := Duration(&e)
	assert.True(t, ok)
	assert.EqualValues(t, 42, d)
}

func TestDurationDerivesFromTimestamps(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Minute)

	e := history.Entry{DeploymentStartedAt: &start, DeploymentCompletedAt: &end}
	d, ok := Duration(&e)
	assert.True(t, ok)
	assert.EqualValues(t, 120, d)

	_, ok = Duration(&history.Entry{DeploymentStartedAt: &start})
	assert.False(t, ok)
}

func TestIsRollbackIsLexicographic(t *testing.T) {
	assert.True(t, IsRollback(&history.Entry{CurrentVersion: "1.0.0", PreviousVersion: "1.1.0"}))
	assert.False(t, IsRollback(&history.Entry{CurrentVersion: "1.1.0", PreviousVersion: "1.0.0"}))
	assert.False(t, IsRollback(&history.Entry{CurrentVersion: "1.0.0", PreviousVersion: ""}))

	// String comparison, not semver: "2.0.0" > "10.0.0" lexicographically,
	// so this upgrade is not flagged as a rollback.
	assert.False(t, IsRollback(&history.Entry{CurrentVersion: "2.0.0", PreviousVersion: "10.0.0"}))
	// And this downgrade-looking pair IS flagged.
	assert.True(t, IsRollback(&history.Entry{CurrentVersion: "10.0.0", PreviousVersion: "2.0.0"}))
}

func TestPercentileNearestRank(t *testing.T) {
	population := make([]int64, 100)
	for i := range population {
		population[i] = int64(i + 1) // 1..100
	}

	assert.EqualValues(t, 51, percentile(population, 0.5))
	assert.EqualValues(t, 96, percentile(population, 0.95))
	assert.EqualValues(t, 100, percentile(population, 0.99))
	assert.EqualValues(t, 7, percentile([]int64{7}, 0.95))
	assert.EqualValues(t, 0, percentile(nil, 0.95))
}

func TestLeadTimeSummary(t *testing.T) {
	entries := []history.Entry{
		durationEntry(60),
		durationEntry(120),
		durationEntry(180),
		{}, // no duration, excluded
	}

	s := LeadTime(entries)
	assert.Equal(t, 3, s.SampleSize)
	assert.InDelta(t, 120.0, s.AverageSeconds, 0.001)
	assert.EqualValues(t, 60, s.MinSeconds)
	assert.EqualValues(t, 180, s.MaxSeconds)
}

func TestLeadTimeEmptyPopulation(t *testing.T) {
	s := LeadTime(nil)
	assert.Zero(t, s.SampleSize)
	assert.Zero(t, s.AverageSeconds)
}

func TestMTTRCoalescesConsecutiveFailures(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []history.Entry{
		phasedEntry(1, history.PhaseFailed, base),
		phasedEntry(1, history.PhaseFailed, base.Add(10*time.Minute)),
		phasedEntry(1, history.PhaseCompleted, base.Add(30*time.Minute)),
	}

	s := MTTR(entries)
	assert.Equal(t, 1, s.TotalFailures)
	assert.Equal(t, 1, s.TotalRecoveries)
	// Recovery measured from the first failure's detection.
	assert.InDelta(t, 1800.0, s.AverageSeconds, 0.001)
}

func TestMTTRUsesCompletedAtWhenPresent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completedAt := base.Add(20 * time.Minute)

	recovery := phasedEntry(1, history.PhaseCompleted, base.Add(25*time.Minute))
	recovery.DeploymentCompletedAt = &completedAt

	s := MTTR([]history.Entry{
		phasedEntry(1, history.PhaseFailed, base),
		recovery,
	})
	assert.InDelta(t, 1200.0, s.AverageSeconds, 0.001)
}

func TestMTTRUnrecoveredFailureStaysOpen(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := MTTR([]history.Entry{phasedEntry(1, history.PhaseFailed, base)})
	assert.Equal(t, 1, s.TotalFailures)
	assert.Equal(t, 0, s.TotalRecoveries)
}

func TestMTTRIsPerInstance(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []history.Entry{
		phasedEntry(1, history.PhaseFailed, base),
		// A different instance's completion never closes instance 1's failure.
		phasedEntry(2, history.PhaseCompleted, base.Add(5*time.Minute)),
	}

	s := MTTR(entries)
	assert.Equal(t, 1, s.TotalFailures)
	assert.Equal(t, 0, s.TotalRecoveries)
}

func TestChangeFailureRate(t *testing.T) {
	base := time.Now().UTC()
	entries := []history.Entry{
		phasedEntry(1, history.PhaseFailed, base),
		phasedEntry(1, history.PhaseCompleted, base),
		phasedEntry(1, history.PhaseCompleted, base),
		phasedEntry(1, history.PhaseCompleted, base),
	}
	assert.InDelta(t, 25.0, ChangeFailureRate(entries), 0.001)
	assert.Zero(t, ChangeFailureRate(nil))
}

func TestDeploymentFrequency(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.InDelta(t, 1.0, DeploymentFrequency(10, start, start.AddDate(0, 0, 10)), 0.001)
	// Sub-day ranges count as one day.
	assert.InDelta(t, 10.0, DeploymentFrequency(10, start, start.Add(6*time.Hour)), 0.001)
	assert.Zero(t, DeploymentFrequency(0, start, start.AddDate(0, 0, 30)))
}

func TestComputeReportEmptyTimeline(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	report := ComputeReport(nil, start, start.AddDate(0, 0, 30))

	assert.Zero(t, report.DeploymentFrequency.Total)
	assert.Zero(t, report.LeadTime.SampleSize)
	assert.Zero(t, report.ChangeFailureRate.Percentage)
	assert.Zero(t, report.MTTR.TotalFailures)
	// Empty timelines grade LOW on frequency but never error or NaN.
	assert.Equal(t, GradeLow, report.DeploymentFrequency.Grade)
}
