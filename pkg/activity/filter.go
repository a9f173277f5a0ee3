// Package activity drops low-activity accounts from a population.
package activity

import (
	"github.com/OFFIS-RIT/coordnet/pkg/common"
)

// DefaultThreshold is the minimum number of events an account needs to be
// kept in a population.
const DefaultThreshold = 10

// Stats summarizes what a Filter call kept and dropped.
type Stats struct {
	Population       common.PopulationLabel `json:"population"`
	Threshold        int                    `json:"threshold"`
	AccountsRetained int                    `json:"accounts_retained"`
	AccountsRemoved  int                    `json:"accounts_removed"`
	RecordsRetained  int                    `json:"records_retained"`
	RecordsRemoved   int                    `json:"records_removed"`
}

// CountByAccount returns the number of events per account.
func CountByAccount(records []common.ActivityRecord) map[int64]int {
	counts := make(map[int64]int)
	for _, r := range records {
		counts[r.AccountID]++
	}
	return counts
}

// Filter keeps the records of every account with at least threshold events.
// A threshold <= 0 keeps all records. Record order is preserved.
//
// When nothing is left a *common.EmptyInputError is returned alongside the
// (valid, empty) population. Callers are expected to log it and continue.
func Filter(pop common.Population, threshold int) (common.Population, Stats, error) {
	counts := CountByAccount(pop.Records)

	stats := Stats{
		Population: pop.Label,
		Threshold:  threshold,
	}

	out := common.Population{
		Label:   pop.Label,
		Records: make([]common.ActivityRecord, 0, len(pop.Records)),
	}

	for _, r := range pop.Records {
		if threshold <= 0 || counts[r.AccountID] >= threshold {
			out.Records = append(out.Records, r)
			continue
		}
		stats.RecordsRemoved++
	}
	stats.RecordsRetained = len(out.Records)

	for _, n := range counts {
		if threshold <= 0 || n >= threshold {
			stats.AccountsRetained++
		} else {
			stats.AccountsRemoved++
		}
	}

	if out.Empty() {
		return out, stats, &common.EmptyInputError{Population: pop.Label}
	}
	return out, stats, nil
}
