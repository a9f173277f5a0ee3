package activity

import (
	"testing"

	"github.com/OFFIS-RIT/coordnet/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func population(label common.PopulationLabel, counts map[int64]int) common.Population {
	pop := common.NewPopulation(label)
	for id, n := range counts {
		for range n {
			pop.Records = append(pop.Records, common.ActivityRecord{AccountID: id})
		}
	}
	return pop
}

func accounts(pop common.Population) map[int64]bool {
	out := make(map[int64]bool)
	for _, r := range pop.Records {
		out[r.AccountID] = true
	}
	return out
}

func TestFilterThresholdBoundaries(t *testing.T) {
	pop := population(common.PopulationSuspect, map[int64]int{
		1: 9,  // threshold-1
		2: 10, // exactly threshold
		3: 25,
		4: 1,
	})

	out, stats, err := Filter(pop, 10)
	require.NoError(t, err)

	got := accounts(out)
	assert.Equal(t, map[int64]bool{2: true, 3: true}, got)
	assert.Equal(t, common.PopulationSuspect, out.Label)
	assert.Equal(t, 2, stats.AccountsRetained)
	assert.Equal(t, 2, stats.AccountsRemoved)
	assert.Equal(t, 35, stats.RecordsRetained)
	assert.Equal(t, 10, stats.RecordsRemoved)
}

func TestFilterNonPositiveThresholdKeepsAll(t *testing.T) {
	pop := population(common.PopulationControl, map[int64]int{1: 1, 2: 3})

	for _, threshold := range []int{0, -4} {
		out, stats, err := Filter(pop, threshold)
		require.NoError(t, err)
		assert.Len(t, out.Records, 4)
		assert.Equal(t, 2, stats.AccountsRetained)
		assert.Zero(t, stats.AccountsRemoved)
	}
}

func TestFilterEmptyResultIsReported(t *testing.T) {
	pop := population(common.PopulationSuspect, map[int64]int{1: 2})

	out, stats, err := Filter(pop, 10)
	require.Error(t, err)

	var emptyErr *common.EmptyInputError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, common.PopulationSuspect, emptyErr.Population)
	assert.True(t, out.Empty())
	assert.Equal(t, 1, stats.AccountsRemoved)
}

func TestFilterPreservesOrderAndInput(t *testing.T) {
	pop := common.NewPopulation(common.PopulationControl)
	for i := range 4 {
		pop.Records = append(pop.Records,
			common.ActivityRecord{AccountID: 7, TweetID: string(rune('a' + i))},
			common.ActivityRecord{AccountID: 8, TweetID: "x"},
		)
	}
	pop.Records = append(pop.Records, common.ActivityRecord{AccountID: 9, TweetID: "lonely"})

	out, _, err := Filter(pop, 2)
	require.NoError(t, err)
	require.Len(t, out.Records, 8)
	assert.Equal(t, "a", out.Records[0].TweetID)
	assert.Equal(t, "d", out.Records[6].TweetID)
	assert.Len(t, pop.Records, 9)
}

func TestFiltersAreIndependent(t *testing.T) {
	// the same account id in both populations is judged per population
	control := population(common.PopulationControl, map[int64]int{5: 12})
	suspect := population(common.PopulationSuspect, map[int64]int{5: 3})

	c, _, err := Filter(control, 10)
	require.NoError(t, err)
	s, _, err := Filter(suspect, 10)
	require.Error(t, err)

	assert.True(t, accounts(c)[5])
	assert.False(t, accounts(s)[5])
}
