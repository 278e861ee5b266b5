package polarion

import (
	"sort"
	"time"
)

// RegressionClosure is one closed regression work item.
type RegressionClosure struct {
	ID       string        `json:"id"`
	ClosedOn time.Time     `json:"closedOn"`
	OpenFor  time.Duration `json:"openFor"`
}

// SuspectedSweep is a date on which so many short-lived regressions were
// closed at once that the closures look like infrastructure cleanup rather
// than individual product fixes.
type SuspectedSweep struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// shortLivedMax bounds how long a regression may have been open to count
// toward a sweep. Long-lived regressions closed in bulk are still individual
// decisions.
const shortLivedMax = 72 * time.Hour

// FindMassClosureSweeps groups short-lived closures by close date and flags
// dates with strictly more than threshold of them. The threshold default
// lives with the CLI; it is a tuning parameter with no verified basis, so it
// stays overridable.
func FindMassClosureSweeps(closures []RegressionClosure, threshold int) []SuspectedSweep {
	perDate := map[string]int{}
	for _, closure := range closures {
		if closure.OpenFor <= 0 || closure.OpenFor > shortLivedMax {
			continue
		}
		perDate[closure.ClosedOn.UTC().Format("2006-01-02")]++
	}

	var sweeps []SuspectedSweep
	for date, count := range perDate {
		if count > threshold {
			sweeps = append(sweeps, SuspectedSweep{Date: date, Count: count})
		}
	}
	sort.Slice(sweeps, func(i, j int) bool { return sweeps[i].Date < sweeps[j].Date })
	return sweeps
}

// FilterSweeps drops closures that fall on suspected sweep dates, leaving
// the regressions worth individual attention.
func FilterSweeps(closures []RegressionClosure, sweeps []SuspectedSweep) []RegressionClosure {
	sweepDates := map[string]bool{}
	for _, sweep := range sweeps {
		sweepDates[sweep.Date] = true
	}

	var out []RegressionClosure
	for _, closure := range closures {
		if sweepDates[closure.ClosedOn.UTC().Format("2006-01-02")] && closure.OpenFor > 0 && closure.OpenFor <= shortLivedMax {
			continue
		}
		out = append(out, closure)
	}
	return out
}
