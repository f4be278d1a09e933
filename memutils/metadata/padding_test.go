package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/ppu/memutils/metadata"
)

func TestNoPadding(t *testing.T) {
	require.Equal(t, 0, metadata.NoPadding{}.Padding(7, 3))
}

func TestAlignedPadding(t *testing.T) {
	policy := metadata.AlignedPadding{Alignment: 4}

	require.Equal(t, 0, policy.Padding(0, 3))
	require.Equal(t, 3, policy.Padding(1, 3))
	require.Equal(t, 0, policy.Padding(8, 3))
	require.Equal(t, 2, policy.Padding(10, 30))

	require.Equal(t, 0, metadata.AlignedPadding{Alignment: 1}.Padding(5, 5))
}

func TestBoundaryPadding(t *testing.T) {
	policy := metadata.BoundaryPadding{Boundary: 8}

	// Fits within the current boundary
	require.Equal(t, 0, policy.Padding(2, 6))
	// Would straddle the boundary at 8
	require.Equal(t, 6, policy.Padding(2, 7))
	require.Equal(t, 1, policy.Padding(15, 4))
	// Larger than a boundary: must start on one
	require.Equal(t, 0, policy.Padding(16, 12))
	require.Equal(t, 5, policy.Padding(11, 12))
}
