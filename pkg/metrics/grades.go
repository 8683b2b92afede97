package metrics

// Grade is a DORA performance tier.
type Grade string

const (
	GradeElite  Grade = "ELITE"
	GradeHigh   Grade = "HIGH"
	GradeMedium Grade = "MEDIUM"
	GradeLow    Grade = "LOW"
)

// gradeRank maps grades onto their ordinal rank, elite first.
func gradeRank(g Grade) int {
	switch g {
	case GradeElite:
		return 0
	case GradeHigh:
		return 1
	case GradeMedium:
		return 2
	default:
		return 3
	}
}

// GradeDeploymentFrequency grades deployments per day. Boundaries are
// inclusive: exactly 0.14/day is HIGH.
func GradeDeploymentFrequency(perDay float64) Grade {
	switch {
	case perDay >= 1.0:
		return GradeElite
	case perDay >= 0.14:
		return GradeHigh
	case perDay >= 0.03:
		return GradeMedium
	default:
		return GradeLow
	}
}

// GradeLeadTime grades average lead time in seconds.
func GradeLeadTime(seconds float64) Grade {
	switch {
	case seconds < 3600: // under an hour
		return GradeElite
	case seconds < 604800: // under a week
		return GradeHigh
	case seconds < 2592000: // under thirty days
		return GradeMedium
	default:
		return GradeLow
	}
}

// GradeChangeFailureRate grades the failure percentage.
func GradeChangeFailureRate(percentage float64) Grade {
	switch {
	case percentage <= 15:
		return GradeElite
	case percentage <= 30:
		return GradeHigh
	case percentage <= 45:
		return GradeMedium
	default:
		return GradeLow
	}
}

// GradeMTTR grades average recovery time in seconds.
func GradeMTTR(seconds float64) Grade {
	switch {
	case seconds < 3600:
		return GradeElite
	case seconds < 86400: // under a day
		return GradeHigh
	case seconds < 604800: // under a week
		return GradeMedium
	default:
		return GradeLow
	}
}

// OverallGrade averages the four grades' ordinal ranks and buckets the
// mean at 0.5 / 1.5 / 2.5 (strictly less).
func OverallGrade(frequency, leadTime, failureRate, mttr Grade) Grade {
	mean := float64(gradeRank(frequency)+gradeRank(leadTime)+gradeRank(failureRate)+gradeRank(mttr)) / 4.0
	switch {
	case mean < 0.5:
		return GradeElite
	case mean < 1.5:
		return GradeHigh
	case mean < 2.5:
		return GradeMedium
	default:
		return GradeLow
	}
}
