package metrics

import (
	"time"

	"github.com/apptrail-sh/control-plane/pkg/history"
)

// FrequencyReport is the deployment-frequency section of a report.
type FrequencyReport struct {
	PerDay float64 `json:"perDay"`
	Total  int     `json:"total"`
	Grade  Grade   `json:"grade"`
}

// LeadTimeReport is the lead-time section of a report.
type LeadTimeReport struct {
	DurationSummary
	Grade Grade `json:"grade"`
}

// FailureRateReport is the change-failure-rate section of a report.
type FailureRateReport struct {
	Percentage    float64 `json:"percentage"`
	FailedCount   int     `json:"failedCount"`
	TotalCount    int     `json:"totalCount"`
	RollbackCount int     `json:"rollbackCount"`
	Grade         Grade   `json:"grade"`
}

// MTTRReport is the mean-time-to-recovery section of a report.
type MTTRReport struct {
	RecoverySummary
	Grade Grade `json:"grade"`
}

// Report is a full DORA report over one filtered timeline slice.
type Report struct {
	RangeStart          time.Time         `json:"rangeStart"`
	RangeEnd            time.Time         `json:"rangeEnd"`
	DeploymentFrequency FrequencyReport   `json:"deploymentFrequency"`
	LeadTime            LeadTimeReport    `json:"leadTime"`
	ChangeFailureRate   FailureRateReport `json:"changeFailureRate"`
	MTTR                MTTRReport        `json:"mttr"`
	OverallGrade        Grade             `json:"overallGrade"`
}

// ComputeReport derives the full DORA report from a timeline snapshot.
// Degenerate inputs produce zeroed sections, never an error or NaN.
func ComputeReport(entries []history.Entry, start, end time.Time) Report {
	leadTime := LeadTime(entries)
	mttr := MTTR(entries)
	failureRate := ChangeFailureRate(entries)
	perDay := DeploymentFrequency(len(entries), start, end)

	var failed, rollbacks int
	for i := range entries {
		if IsFailed(&entries[i]) {
			failed++
		}
		if IsRollback(&entries[i]) {
			rollbacks++
		}
	}

	frequencyGrade := GradeDeploymentFrequency(perDay)
	leadTimeGrade := GradeLeadTime(leadTime.AverageSeconds)
	failureGrade := GradeChangeFailureRate(failureRate)
	mttrGrade := GradeMTTR(mttr.AverageSeconds)

	return Report{
		RangeStart: start,
		RangeEnd:   end,
		DeploymentFrequency: FrequencyReport{
			PerDay: perDay,
			Total:  len(entries),
			Grade:  frequencyGrade,
		},
		LeadTime: LeadTimeReport{
			DurationSummary: leadTime,
			Grade:           leadTimeGrade,
		},
		ChangeFailureRate: FailureRateReport{
			Percentage:    failureRate,
			FailedCount:   failed,
			TotalCount:    len(entries),
			RollbackCount: rollbacks,
			Grade:         failureGrade,
		},
		MTTR: MTTRReport{
			RecoverySummary: mttr,
			Grade:           mttrGrade,
		},
		OverallGrade: OverallGrade(frequencyGrade, leadTimeGrade, failureGrade, mttrGrade),
	}
}
