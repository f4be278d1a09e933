package metadata

import "github.com/vkngwrapper/ppu/memutils"

// PaddingPolicy decides how many units must be skipped at the front of a candidate block
// before an allocation can be placed in it. Some hardware resources must start on particular
// boundaries, and the amount of padding depends on where the candidate begins, so the policy
// is consulted once per candidate.
type PaddingPolicy interface {
	// Padding returns the units of leading padding required to place an allocation of size
	// units in a block starting at start, or -1 if the allocation can never be placed there.
	Padding(start, size int) int
}

// NoPadding places allocations at the start of any candidate block
type NoPadding struct{}

func (NoPadding) Padding(start, size int) int {
	return 0
}

// AlignedPadding requires allocations to start on a multiple of Alignment units
type AlignedPadding struct {
	Alignment int
}

func (p AlignedPadding) Padding(start, size int) int {
	return memutils.AlignUp(start, p.Alignment) - start
}

// BoundaryPadding forbids allocations from straddling a multiple of Boundary units. An
// allocation larger than Boundary must start on a boundary instead.
type BoundaryPadding struct {
	Boundary int
}

func (p BoundaryPadding) Padding(start, size int) int {
	if p.Boundary <= 1 {
		return 0
	}

	if size > p.Boundary {
		return memutils.AlignUp(start, p.Boundary) - start
	}

	inBoundary := start % p.Boundary
	if inBoundary+size > p.Boundary {
		return p.Boundary - inBoundary
	}

	return 0
}
