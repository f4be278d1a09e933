package sim_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/ppu/internal/sim"
	"github.com/vkngwrapper/ppu/memutils/commit"
)

func TestRunLengthRoundTrip(t *testing.T) {
	src := append(bytes.Repeat([]byte{0}, 300), 1, 2, 3, 4, 4, 5)
	src = append(src, bytes.Repeat([]byte{9}, 3)...)

	encoded := sim.EncodeRunLength(src)
	require.Less(t, len(encoded), len(src))

	dst := make([]byte, len(src))
	require.NoError(t, sim.DecodeRunLength(encoded, dst))
	require.Equal(t, src, dst)
}

func TestRunLengthEncoding(t *testing.T) {
	encoded := sim.EncodeRunLength([]byte{7, 7, 7, 7, 1, 2})
	require.Equal(t, []byte{0x30, 6, 0, 0, 0x81, 7, 0x01, 1, 2}, encoded)
}

func TestRunLengthErrors(t *testing.T) {
	dst := make([]byte, 4)

	require.Error(t, sim.DecodeRunLength([]byte{0x10, 4, 0, 0}, dst))
	require.Error(t, sim.DecodeRunLength([]byte{0x30, 8, 0, 0, 0x85, 1}, dst))
	require.Error(t, sim.DecodeRunLength([]byte{0x30, 4, 0, 0, 0x03, 1, 2}, dst))

	require.Error(t, sim.Decoder.Decode(commit.EncodingLZ77, nil, dst))
	require.NoError(t, sim.Decoder.Decode(commit.EncodingRunLength, []byte{0x30, 4, 0, 0, 0x81, 5}, dst))
	require.Equal(t, []byte{5, 5, 5, 5}, dst)
}
