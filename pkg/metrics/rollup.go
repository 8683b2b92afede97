package metrics

import (
	"sort"
	"time"

	"github.com/apptrail-sh/control-plane/pkg/history"
)

// GroupReport is one group's report in a rollup.
type GroupReport struct {
	Key    string `json:"key"`
	Report Report `json:"report"`
}

// RankedGroup is one group's position in a ranking.
type RankedGroup struct {
	Key        string  `json:"key"`
	Rank       int     `json:"rank"`
	Percentile float64 `json:"percentile"`
	Report     Report  `json:"report"`
}

// Rollup computes a report per group, sorted by key for stable output.
func Rollup(groups map[string][]history.Entry, start, end time.Time) []GroupReport {
	reports := make([]GroupReport, 0, len(groups))
	for key, entries := range groups {
		reports = append(reports, GroupReport{Key: key, Report: ComputeReport(entries, start, end)})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Key < reports[j].Key })
	return reports
}

// Rank orders groups by overall grade (best first), breaking ties by total
// deployment count descending, then key. The percentile of a group is
// (totalGroups − rank) / (totalGroups − 1) × 100, and 100 when only one
// group exists.
func Rank(groups map[string][]history.Entry, start, end time.Time) []RankedGroup {
	ranked := make([]RankedGroup, 0, len(groups))
	for key, entries := range groups {
		ranked = append(ranked, RankedGroup{Key: key, Report: ComputeReport(entries, start, end)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		gi, gj := gradeRank(ranked[i].Report.OverallGrade), gradeRank(ranked[j].Report.OverallGrade)
		if gi != gj {
			return gi < gj
		}
		ti, tj := ranked[i].Report.DeploymentFrequency.Total, ranked[j].Report.DeploymentFrequency.Total
		if ti != tj {
			return ti > tj
		}
		return ranked[i].Key < ranked[j].Key
	})

	total := len(ranked)
	for i := range ranked {
		ranked[i].Rank = i + 1
		if total == 1 {
			ranked[i].Percentile = 100
		} else {
			ranked[i].Percentile = float64(total-ranked[i].Rank) / float64(total-1) * 100
		}
	}
	return ranked
}
