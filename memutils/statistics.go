package memutils

import "math"

// Statistics counts blocks and units within one managed region. Units are whatever
// hardware-defined granule the region is partitioned in.
type Statistics struct {
	BlockCount      int
	AllocationCount int
	TotalUnits      int
	AllocationUnits int
}

func (s *Statistics) Clear() {
	s.BlockCount = 0
	s.AllocationCount = 0
	s.TotalUnits = 0
	s.AllocationUnits = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.AllocationCount += other.AllocationCount
	s.TotalUnits += other.TotalUnits
	s.AllocationUnits += other.AllocationUnits
}

type DetailedStatistics struct {
	Statistics
	UnusedRangeCount    int
	PendingRemovalCount int
	PendingRemovalUnits int
	AllocationSizeMin   int
	AllocationSizeMax   int
	UnusedRangeSizeMin  int
	UnusedRangeSizeMax  int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UnusedRangeCount = 0
	s.PendingRemovalCount = 0
	s.PendingRemovalUnits = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxInt
	s.UnusedRangeSizeMax = 0
}

func (s *DetailedStatistics) AddUnusedRange(size int) {
	s.UnusedRangeCount++

	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}

	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

// AddPendingRemoval records a block whose last handle was released but which has not been
// reclaimed yet. It does not count as an unused range until the next reclaim pass.
func (s *DetailedStatistics) AddPendingRemoval(size int) {
	s.PendingRemovalCount++
	s.PendingRemovalUnits += size
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationUnits += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.UnusedRangeCount += other.UnusedRangeCount
	s.PendingRemovalCount += other.PendingRemovalCount
	s.PendingRemovalUnits += other.PendingRemovalUnits

	if other.UnusedRangeSizeMin < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = other.UnusedRangeSizeMin
	}

	if other.UnusedRangeSizeMax > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = other.UnusedRangeSizeMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}
