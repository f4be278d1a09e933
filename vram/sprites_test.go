package vram_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/ppu/memutils/commit"
	mock_commit "github.com/vkngwrapper/ppu/memutils/commit/mocks"
	"github.com/vkngwrapper/ppu/vram"
	"go.uber.org/mock/gomock"
)

func TestSprite8bppAlignment(t *testing.T) {
	sprites := vram.NewSpriteTiles(nil, vram.SpriteOptions{Flags: vram.CreateValidate})

	first := sprites.CreateTiles(make([]byte, 32), commit.EncodingNone, 4, 1)
	require.Equal(t, 0, sprites.TileIndex(first))

	wide := sprites.CreateTiles(make([]byte, 64), commit.EncodingNone, 8, 1)
	require.Equal(t, 2, sprites.TileIndex(wide))
	require.Equal(t, 2, sprites.Size(wide))

	filler := sprites.CreateTiles(make([]byte, 32), commit.EncodingNone, 4, 1)
	require.Equal(t, 1, sprites.TileIndex(filler))

	stats := sprites.Stats()
	require.Equal(t, 4, stats.UsedUnits)
	require.Equal(t, 1020, stats.FreeUnits)
}

func TestSpriteUploads(t *testing.T) {
	sink := commit.NewBufferSink(32 * 1024)
	sprites := vram.NewSpriteTiles(nil, vram.SpriteOptions{Sink: sink})

	source := bytes.Repeat([]byte{7}, 64)
	handle := sprites.CreateTiles(source, commit.EncodingNone, 4, 2)
	require.Equal(t, source, sink.Memory[:64])
	require.Equal(t, source, sprites.VRAM(handle))

	raw := sprites.AllocateRaw(4, 1)
	view := sprites.VRAM(raw)
	require.Len(t, view, 32)
	copy(view, bytes.Repeat([]byte{9}, 32))
	require.Equal(t, byte(9), sink.Memory[sprites.ByteOffset(raw)])
	require.Nil(t, sprites.Source(raw))

	// Raw blocks are never deduplicated
	other := sprites.AllocateRaw(4, 1)
	require.NotEqual(t, raw, other)
}

func TestSpriteDeferredUploadsUseDMA(t *testing.T) {
	sink := commit.NewBufferSink(32 * 1024)
	sprites := vram.NewSpriteTiles(nil, vram.SpriteOptions{
		Flags: vram.CreateDeferUploads | vram.CreateValidate,
		Sink:  sink,
	})

	source := bytes.Repeat([]byte{3}, 32)
	handle := sprites.CreateTiles(source, commit.EncodingNone, 4, 1)
	require.True(t, sprites.Dirty(handle))
	require.Equal(t, 0, sink.DMATransfers)

	require.NoError(t, sprites.Update(true))
	require.Equal(t, 1, sink.DMATransfers)
	require.Equal(t, source, sink.Memory[:32])
	require.False(t, sprites.Dirty(handle))

	require.Equal(t, 1, sprites.Stats().Commit.DMATransfers)
}

func TestSpriteCompressedUploads(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	decoder := mock_commit.NewMockDecoder(ctrl)
	sink := commit.NewBufferSink(32 * 1024)
	sprites := vram.NewSpriteTiles(nil, vram.SpriteOptions{
		Flags:   vram.CreateValidate,
		Sink:    sink,
		Decoder: decoder,
	})

	compressed := []byte{0x10, 0x40, 0x00, 0x00}
	decoder.EXPECT().Decode(commit.EncodingLZ77, compressed, gomock.Any()).DoAndReturn(
		func(encoding commit.Encoding, src []byte, dst []byte) error {
			require.Len(t, dst, 64)
			for i := range dst {
				dst[i] = 0x11
			}
			return nil
		}).Times(2)

	handle := sprites.CreateTiles(compressed, commit.EncodingLZ77, 4, 2)
	require.Equal(t, commit.EncodingLZ77, sprites.Encoding(handle))
	require.Equal(t, bytes.Repeat([]byte{0x11}, 64), sink.Memory[:64])

	sprites.MarkDirty(handle)
	sprites.Reclaim()

	plainStats, err := sprites.CommitPlain(false)
	require.NoError(t, err)
	require.Equal(t, commit.PassStats{}, plainStats)

	stats, err := sprites.CommitCompressed()
	require.NoError(t, err)
	require.Equal(t, commit.PassStats{BytesWritten: 64, BlocksDecoded: 1}, stats)
	require.False(t, sprites.Dirty(handle))
}

func TestRefOwnership(t *testing.T) {
	sprites := vram.NewSpriteTiles(nil, vram.SpriteOptions{Flags: vram.CreateValidate})

	ref := vram.NewRef(sprites, sprites.CreateTiles(make([]byte, 32), commit.EncodingNone, 4, 1))
	require.True(t, ref.Valid())

	clone := ref.Clone()
	require.Equal(t, ref.Handle(), clone.Handle())
	require.Equal(t, 2, sprites.UsageCount(ref.Handle()))

	handle := ref.Handle()
	ref.Release()
	require.False(t, ref.Valid())
	require.Equal(t, vram.NoHandle, ref.Handle())
	require.Equal(t, 1, sprites.UsageCount(handle))

	// Releasing twice does nothing
	ref.Release()
	require.Equal(t, 1, sprites.UsageCount(handle))

	clone.Release()
	require.Equal(t, 1, sprites.Stats().PendingUnits)

	empty := vram.NewRef(sprites, vram.NoHandle)
	require.False(t, empty.Valid())
	require.False(t, empty.Clone().Valid())
}

func TestSpriteFrameLoop(t *testing.T) {
	sprites := vram.NewSpriteTiles(nil, vram.SpriteOptions{Flags: vram.CreateValidate, MaxItems: 8})

	sources := make([][]byte, 4)
	for i := range sources {
		sources[i] = bytes.Repeat([]byte{byte(i)}, 32*(i+1))
	}

	for frame := 0; frame < 12; frame++ {
		var handles []vram.Handle
		for i, source := range sources {
			handles = append(handles, sprites.CreateTiles(source, commit.EncodingNone, 4, i+1))
		}

		for _, handle := range handles {
			sprites.Release(handle)
		}

		require.NoError(t, sprites.Update(frame%2 == 0))
		require.NoError(t, sprites.Validate())
	}

	stats := sprites.Stats()
	require.Equal(t, 1024, stats.FreeUnits)
	require.Equal(t, 48, stats.Created)
}
