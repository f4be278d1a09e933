package memutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetailedStatisticsClear(t *testing.T) {
	var stats DetailedStatistics
	stats.Clear()

	require.Equal(t, math.MaxInt, stats.AllocationSizeMin)
	require.Equal(t, math.MaxInt, stats.UnusedRangeSizeMin)
	require.Equal(t, 0, stats.AllocationSizeMax)
	require.Equal(t, 0, stats.UnusedRangeSizeMax)
}

func TestDetailedStatisticsAccumulate(t *testing.T) {
	var first DetailedStatistics
	first.Clear()
	first.BlockCount = 1
	first.TotalUnits = 32
	first.AddAllocation(4)
	first.AddAllocation(1)
	first.AddUnusedRange(20)
	first.AddPendingRemoval(7)

	require.Equal(t, 2, first.AllocationCount)
	require.Equal(t, 5, first.AllocationUnits)
	require.Equal(t, 1, first.AllocationSizeMin)
	require.Equal(t, 4, first.AllocationSizeMax)
	require.Equal(t, 1, first.PendingRemovalCount)
	require.Equal(t, 7, first.PendingRemovalUnits)

	var second DetailedStatistics
	second.Clear()
	second.BlockCount = 1
	second.TotalUnits = 1024
	second.AddAllocation(64)
	second.AddUnusedRange(2)
	second.AddUnusedRange(900)

	var total DetailedStatistics
	total.Clear()
	total.AddDetailedStatistics(&first)
	total.AddDetailedStatistics(&second)

	require.Equal(t, 2, total.BlockCount)
	require.Equal(t, 1056, total.TotalUnits)
	require.Equal(t, 3, total.AllocationCount)
	require.Equal(t, 69, total.AllocationUnits)
	require.Equal(t, 1, total.AllocationSizeMin)
	require.Equal(t, 64, total.AllocationSizeMax)
	require.Equal(t, 3, total.UnusedRangeCount)
	require.Equal(t, 2, total.UnusedRangeSizeMin)
	require.Equal(t, 900, total.UnusedRangeSizeMax)
	require.Equal(t, 1, total.PendingRemovalCount)
	require.Equal(t, 7, total.PendingRemovalUnits)

	total.Statistics.Clear()
	require.Equal(t, Statistics{}, total.Statistics)
}
