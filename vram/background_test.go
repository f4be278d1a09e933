package vram_test

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/ppu/memutils/commit"
	"github.com/vkngwrapper/ppu/vram"
)

func newBackground(t *testing.T) (*vram.BackgroundBlocks, *commit.BufferSink) {
	sink := commit.NewBufferSink(64 * 1024)
	background := vram.NewBackgroundBlocks(nil, vram.BackgroundOptions{
		Flags: vram.CreateValidate,
		Sink:  sink,
	})
	return background, sink
}

func recoverError(t *testing.T, f func()) error {
	t.Helper()

	var recovered any
	func() {
		defer func() {
			recovered = recover()
		}()
		f()
	}()

	require.NotNil(t, recovered, "expected a panic")
	err, ok := recovered.(error)
	require.True(t, ok, "expected the panic value to be an error, got %T", recovered)
	return err
}

func cellAt(sink *commit.BufferSink, offset int) uint16 {
	return binary.LittleEndian.Uint16(sink.Memory[offset:])
}

func TestTilesDoNotStraddleCharblocks(t *testing.T) {
	background, _ := newBackground(t)

	// Screenblocks 0-5
	first := background.AllocateRawMap(32, 96, vram.MapBinding{Tiles: vram.NoHandle})
	second := background.AllocateRawMap(32, 96, vram.MapBinding{Tiles: vram.NoHandle})
	require.Equal(t, 0, background.Screenblock(first))
	require.Equal(t, 3, background.Screenblock(second))
	require.Equal(t, 3, background.Size(second))

	// 4 units won't fit in what remains of charblock 0
	large := background.CreateTiles(make([]byte, 8192), commit.EncodingNone, 4, 256)
	require.Equal(t, 8, background.Offset(large))
	require.Equal(t, 1, background.Charblock(large))
	require.Equal(t, 0, background.TileBase(large))

	// The padding left behind is still usable by something smaller
	small := background.CreateTiles(make([]byte, 4096), commit.EncodingNone, 4, 128)
	require.Equal(t, 6, background.Offset(small))
	require.Equal(t, 0, background.Charblock(small))
	require.Equal(t, 384, background.TileBase(small))
	require.NoError(t, background.Validate())
}

func TestMapAssociationUpdate(t *testing.T) {
	background, sink := newBackground(t)

	tiles1 := background.CreateTiles(make([]byte, 2048), commit.EncodingNone, 4, 64)
	tiles2 := background.CreateTiles(make([]byte, 2048), commit.EncodingNone, 4, 64)
	require.Equal(t, 0, background.TileBase(tiles1))
	require.Equal(t, 64, background.TileBase(tiles2))

	cells := make([]byte, 32*32*2)
	binary.LittleEndian.PutUint16(cells[2:], 5)

	tileMap := background.CreateMap(cells, commit.EncodingNone, 32, 32, vram.MapBinding{Tiles: tiles1, PaletteBank: 1})
	require.Equal(t, 2, background.Screenblock(tileMap))
	require.Equal(t, uint16(0x1000), background.CellOffset(tileMap))
	require.Equal(t, 2, background.UsageCount(tiles1))
	require.False(t, background.Dirty(tileMap))

	mapOffset := background.ByteOffset(tileMap)
	require.Equal(t, uint16(0x1000), cellAt(sink, mapOffset))
	require.Equal(t, uint16(0x1005), cellAt(sink, mapOffset+2))

	statsBefore := background.Stats()

	rebound := background.CreateMap(cells, commit.EncodingNone, 32, 32, vram.MapBinding{Tiles: tiles2, PaletteBank: 1})
	require.Equal(t, tileMap, rebound)
	require.Equal(t, 2, background.UsageCount(tileMap))
	require.Equal(t, tiles2, background.MapTiles(tileMap))
	require.Equal(t, 1, background.MapPalette(tileMap))
	require.Equal(t, uint16(0x1040), background.CellOffset(tileMap))
	require.True(t, background.Dirty(tileMap))

	require.Equal(t, 1, background.UsageCount(tiles1))
	require.Equal(t, 2, background.UsageCount(tiles2))

	statsAfter := background.Stats()
	require.Equal(t, statsBefore.Created, statsAfter.Created)
	require.Equal(t, statsBefore.UsedUnits, statsAfter.UsedUnits)
	require.Equal(t, statsBefore.FreeUnits, statsAfter.FreeUnits)

	background.Reclaim()
	stats, err := background.CommitPlain(true)
	require.NoError(t, err)
	require.Equal(t, 1, stats.CPUCopies)
	require.Equal(t, 0, stats.DMATransfers)

	require.Equal(t, uint16(0x1040), cellAt(sink, mapOffset))
	require.Equal(t, uint16(0x1045), cellAt(sink, mapOffset+2))
	require.False(t, background.Dirty(tileMap))
}

func TestMapHoldsTilesUntilReclaimed(t *testing.T) {
	background, _ := newBackground(t)

	tiles := background.CreateTiles(make([]byte, 2048), commit.EncodingNone, 4, 64)
	tileMap := background.CreateMap(make([]byte, 2048), commit.EncodingNone, 32, 32, vram.MapBinding{Tiles: tiles})

	background.Release(tiles)
	require.Equal(t, 1, background.UsageCount(tiles))

	background.Release(tileMap)
	require.Equal(t, 1, background.UsageCount(tiles))

	background.Reclaim()
	stats := background.Stats()
	require.Equal(t, 1, stats.PendingUnits)
	require.Equal(t, 1, stats.Reclaimed)

	background.Reclaim()
	stats = background.Stats()
	require.Equal(t, 0, stats.PendingUnits)
	require.Equal(t, 32, stats.FreeUnits)
	require.Equal(t, 1, stats.Blocks.BlockCount)
	require.Equal(t, 1, stats.Blocks.UnusedRangeCount)
}

func TestSetMapTilesAndPalette(t *testing.T) {
	background, _ := newBackground(t)

	tiles := background.CreateTiles(make([]byte, 4096), commit.EncodingNone, 4, 128)
	tileMap := background.AllocateRawMap(32, 32, vram.MapBinding{Tiles: vram.NoHandle})
	require.Equal(t, uint16(0), background.CellOffset(tileMap))

	background.SetMapPalette(tileMap, 3)
	require.Equal(t, uint16(0x3000), background.CellOffset(tileMap))
	require.True(t, background.Dirty(tileMap))

	background.SetMapTiles(tileMap, tiles)
	require.Equal(t, tiles, background.MapTiles(tileMap))
	require.Equal(t, 2, background.UsageCount(tiles))

	background.SetMapTiles(tileMap, vram.NoHandle)
	require.Equal(t, vram.NoHandle, background.MapTiles(tileMap))
	require.Equal(t, 1, background.UsageCount(tiles))
}

func TestInvalidBindingsPanic(t *testing.T) {
	background, _ := newBackground(t)

	tiles8 := background.CreateTiles(make([]byte, 2048), commit.EncodingNone, 8, 32)
	tileMap := background.CreateMap(make([]byte, 2048), commit.EncodingNone, 32, 32, vram.MapBinding{Tiles: tiles8})

	err := recoverError(t, func() {
		background.SetMapPalette(tileMap, 16)
	})
	require.True(t, errors.HasAssertionFailure(err))

	err = recoverError(t, func() {
		background.SetMapPalette(tileMap, 2)
	})
	require.True(t, errors.HasAssertionFailure(err))

	err = recoverError(t, func() {
		background.CreateMap(make([]byte, 2048), commit.EncodingNone, 16, 64, vram.MapBinding{Tiles: tileMap})
	})
	require.True(t, errors.HasAssertionFailure(err))

	err = recoverError(t, func() {
		background.Charblock(tileMap)
	})
	require.True(t, errors.HasAssertionFailure(err))

	require.NoError(t, background.Validate())
}

func TestInvalidShapesPanic(t *testing.T) {
	background, _ := newBackground(t)

	err := recoverError(t, func() {
		background.CreateTiles(make([]byte, 32), commit.EncodingNone, 2, 1)
	})
	require.True(t, errors.HasAssertionFailure(err))

	err = recoverError(t, func() {
		background.AllocateRawTiles(4, 0)
	})
	require.True(t, errors.HasAssertionFailure(err))

	err = recoverError(t, func() {
		background.AllocateRawMap(256, 256, vram.MapBinding{Tiles: vram.NoHandle})
	})
	require.True(t, errors.HasAssertionFailure(err))

	// Compressed sources need a decoder
	err = recoverError(t, func() {
		background.CreateTiles([]byte{1, 2}, commit.EncodingLZ77, 4, 1)
	})
	require.True(t, errors.HasAssertionFailure(err))
}

func TestSourceLargerThanShapePanics(t *testing.T) {
	background, _ := newBackground(t)

	// One 4bpp tile is 32 bytes, even though the block it lands in holds 2 KiB
	err := recoverError(t, func() {
		_, _ = background.CreateTilesOptional(make([]byte, 64), commit.EncodingNone, 4, 1)
	})
	require.True(t, errors.HasAssertionFailure(err))

	err = recoverError(t, func() {
		background.CreateMap(make([]byte, 2050), commit.EncodingNone, 32, 32, vram.MapBinding{Tiles: vram.NoHandle})
	})
	require.True(t, errors.HasAssertionFailure(err))

	stats := background.Stats()
	require.Equal(t, 32, stats.FreeUnits)
	require.Equal(t, 0, stats.PendingUnits)
	require.Equal(t, 0, stats.Created)
	require.NoError(t, background.Validate())
}

func TestSourceLargerThanShapePanicsWithDeferredUploads(t *testing.T) {
	background := vram.NewBackgroundBlocks(nil, vram.BackgroundOptions{
		Flags: vram.CreateValidate | vram.CreateDeferUploads,
	})

	err := recoverError(t, func() {
		background.CreateTiles(make([]byte, 64), commit.EncodingNone, 4, 1)
	})
	require.True(t, errors.HasAssertionFailure(err))
	require.Equal(t, 0, background.Stats().DirtyBlocks)

	tiles := background.CreateTiles(make([]byte, 32), commit.EncodingNone, 4, 1)
	err = recoverError(t, func() {
		background.SetSource(tiles, make([]byte, 33), commit.EncodingNone)
	})
	require.True(t, errors.HasAssertionFailure(err))
	require.NoError(t, background.Validate())
}

func TestBackgroundOptionalExhaustion(t *testing.T) {
	background, _ := newBackground(t)

	var maps []vram.Handle
	for i := 0; i < 32; i++ {
		handle, err := background.AllocateRawMapOptional(32, 32, vram.MapBinding{Tiles: vram.NoHandle})
		require.NoError(t, err)
		maps = append(maps, handle)
	}

	handle, err := background.CreateTilesOptional(make([]byte, 32), commit.EncodingNone, 4, 1)
	require.Equal(t, vram.NoHandle, handle)
	require.ErrorIs(t, err, vram.ErrOutOfVRAM)

	handle, err = background.AllocateRawTilesOptional(4, 1)
	require.Equal(t, vram.NoHandle, handle)
	require.ErrorIs(t, err, vram.ErrOutOfVRAM)

	err = recoverError(t, func() {
		background.AllocateRawTiles(4, 1)
	})
	require.ErrorIs(t, err, vram.ErrOutOfVRAM)

	background.Release(maps[7])
	handle, err = background.CreateTilesOptional(make([]byte, 32), commit.EncodingNone, 4, 1)
	require.NoError(t, err)
	require.Equal(t, 7, background.Offset(handle))
	require.True(t, background.Dirty(handle))
	require.Equal(t, 1, background.Stats().ForcedReclaims)
}

func TestFindMapIgnoresBinding(t *testing.T) {
	background, _ := newBackground(t)

	cells := make([]byte, 2048)
	_, found := background.FindMap(cells, commit.EncodingNone, 32, 32)
	require.False(t, found)

	tiles := background.CreateTiles(make([]byte, 32), commit.EncodingNone, 4, 1)
	tileMap := background.CreateMap(cells, commit.EncodingNone, 32, 32, vram.MapBinding{Tiles: tiles, PaletteBank: 2})

	handle, found := background.FindMap(cells, commit.EncodingNone, 32, 32)
	require.True(t, found)
	require.Equal(t, tileMap, handle)
	require.Equal(t, 2, background.UsageCount(tileMap))
	require.Equal(t, 2, background.MapPalette(tileMap))

	tilesAgain, found := background.FindTiles(background.Source(tiles), commit.EncodingNone, 4, 1)
	require.True(t, found)
	require.Equal(t, tiles, tilesAgain)
}

func TestBackgroundStatsString(t *testing.T) {
	background, _ := newBackground(t)

	tiles := background.CreateTiles(make([]byte, 64), commit.EncodingNone, 4, 2)
	background.CreateMap(make([]byte, 2048), commit.EncodingNone, 32, 32, vram.MapBinding{Tiles: tiles})
	background.Release(tiles)

	str := background.BuildStatsString()
	require.True(t, json.Valid([]byte(str)), str)

	var dump struct {
		Region  string
		Summary struct {
			TotalUnits  int
			Allocations int
		}
		Blocks []struct {
			Handle int
			Offset int
			Size   int
			Status string
			Kind   string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(str), &dump))
	require.Equal(t, "Background", dump.Region)
	require.Equal(t, 32, dump.Summary.TotalUnits)
	require.Equal(t, 2, dump.Summary.Allocations)
	require.Len(t, dump.Blocks, 3)
	require.Equal(t, "Tiles", dump.Blocks[0].Kind)
	require.Equal(t, "Map", dump.Blocks[1].Kind)
	require.Equal(t, "Free", dump.Blocks[2].Status)
}
