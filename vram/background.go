package vram

import (
	"github.com/vkngwrapper/ppu/memutils"
	"github.com/vkngwrapper/ppu/memutils/commit"
	"github.com/vkngwrapper/ppu/memutils/metadata"
	"golang.org/x/exp/slog"
)

// BackgroundBlocks manages the background region of display memory, which holds both tile
// sets and tile maps. The region is split into 2 KiB units, one per map screenblock, and
// every group of eight units forms a charblock that tile sets are addressed from.
type BackgroundBlocks struct {
	*region
}

// NewBackgroundBlocks creates a manager for the background region
//
// logger - Receives allocation traces at debug level and status dumps before fatal errors.
// It may be nil.
//
// options - Optional parameters: it is valid to leave all the fields blank
func NewBackgroundBlocks(logger *slog.Logger, options BackgroundOptions) *BackgroundBlocks {
	config := regionConfig{
		name:      "Background",
		unitBytes: backgroundUnitBytes,
		units:     backgroundUnits,
		maxItems:  options.MaxItems,
		flags:     options.Flags,
		sink:      options.Sink,
		decoder:   options.Decoder,
	}
	config.applyDefaults(defaultBackgroundItems)

	return &BackgroundBlocks{region: newRegion(logger, config)}
}

var tilesPadding = metadata.BoundaryPadding{Boundary: backgroundCharblockUnits}

func (b *BackgroundBlocks) units(identity Identity) int {
	return memutils.DivCeil(identity.byteSize(), b.unitBytes)
}

func (b *BackgroundBlocks) checkIdentity(identity Identity) {
	if err := identity.validate(); err != nil {
		invalidRequest("invalid background %s request: %v", identity.Kind, err)
	}

	if b.units(identity) > backgroundUnits {
		invalidRequest("background %s of %d bytes can never fit in the region", identity.Kind, identity.byteSize())
	}
}

// cellOffset returns the value added to every cell of a map bound to binding: the index of the
// bound tile set's first tile within its charblock, plus the palette bank in the top four bits
func (b *BackgroundBlocks) cellOffset(binding MapBinding) uint16 {
	if binding.PaletteBank < 0 || binding.PaletteBank > 15 {
		invalidRequest("palette bank %d is out of range", binding.PaletteBank)
	}

	offset := binding.PaletteBank << 12
	if binding.Tiles == NoHandle {
		return uint16(offset)
	}

	id, info := b.usedInfo(binding.Tiles)
	if info.identity.Kind != KindTiles {
		invalidRequest("maps can only be bound to tile sets, not %s", info.identity.Kind)
	}

	if info.identity.BPP == 8 && binding.PaletteBank != 0 {
		invalidRequest("maps bound to 8bpp tile sets can't use palette bank %d", binding.PaletteBank)
	}

	start, err := b.meta.Offset(id)
	must(err, "failed to read background block %d", id)

	offset += (start % backgroundCharblockUnits) * b.unitBytes / tileBytes(info.identity.BPP)
	return uint16(offset)
}

func (b *BackgroundBlocks) tilesRequest(identity Identity, source []byte, raw bool, required bool) createRequest {
	b.checkIdentity(identity)

	return createRequest{
		identity: identity,
		source:   source,
		units:    b.units(identity),
		policy:   tilesPadding,
		raw:      raw,
		required: required,
	}
}

func (b *BackgroundBlocks) mapRequest(identity Identity, source []byte, binding MapBinding, raw bool, required bool) createRequest {
	b.checkIdentity(identity)

	return createRequest{
		identity:   identity,
		source:     source,
		units:      b.units(identity),
		policy:     metadata.NoPadding{},
		binding:    binding,
		cellOffset: b.cellOffset(binding),
		raw:        raw,
		required:   required,
	}
}

func (b *BackgroundBlocks) checkKind(handle Handle, kind Kind) *blockInfo {
	_, info := b.usedInfo(handle)
	if info.identity.Kind != kind {
		invalidRequest("background handle %d is %s, not %s", handle, info.identity.Kind, kind)
	}
	return info
}

// FindTiles returns the block already holding a tile set, retaining it, or false if there
// is none
func (b *BackgroundBlocks) FindTiles(source []byte, encoding commit.Encoding, bpp int, tiles int) (Handle, bool) {
	identity := TilesIdentity(source, encoding, bpp, tiles)
	b.checkIdentity(identity)
	return b.find(identity)
}

// CreateTiles returns a block holding a tile set, allocating and uploading it if it is not
// already present. A tile set never straddles a charblock unless it is larger than one, in
// which case it starts on a charblock. Panics if the region has no room.
func (b *BackgroundBlocks) CreateTiles(source []byte, encoding commit.Encoding, bpp int, tiles int) Handle {
	handle, _ := b.create(b.tilesRequest(TilesIdentity(source, encoding, bpp, tiles), source, false, true))
	return handle
}

// CreateTilesOptional is CreateTiles, but returns NoHandle and an error wrapping ErrOutOfVRAM
// if the region has no room
func (b *BackgroundBlocks) CreateTilesOptional(source []byte, encoding commit.Encoding, bpp int, tiles int) (Handle, error) {
	return b.create(b.tilesRequest(TilesIdentity(source, encoding, bpp, tiles), source, false, false))
}

// AllocateRawTiles allocates room for a tile set that the caller will write through VRAM.
// Raw blocks are never deduplicated. Panics if the region has no room.
func (b *BackgroundBlocks) AllocateRawTiles(bpp int, tiles int) Handle {
	handle, _ := b.create(b.tilesRequest(TilesIdentity(nil, commit.EncodingNone, bpp, tiles), nil, true, true))
	return handle
}

// AllocateRawTilesOptional is AllocateRawTiles, but returns NoHandle and an error wrapping
// ErrOutOfVRAM if the region has no room
func (b *BackgroundBlocks) AllocateRawTilesOptional(bpp int, tiles int) (Handle, error) {
	return b.create(b.tilesRequest(TilesIdentity(nil, commit.EncodingNone, bpp, tiles), nil, true, false))
}

// FindMap returns the block already holding a map's cells, retaining it, or false if there is
// none. The block may be bound to any tile set.
func (b *BackgroundBlocks) FindMap(source []byte, encoding commit.Encoding, width int, height int) (Handle, bool) {
	identity := MapIdentity(source, encoding, width, height)
	b.checkIdentity(identity)
	return b.find(identity)
}

// CreateMap returns a block holding a map's cells, allocating and uploading it if it is not
// already present. If the cells are present but bound differently, the existing block is
// rebound and flagged dirty instead. The map holds a reference to its bound tile set until it
// is reclaimed. Panics if the region has no room.
func (b *BackgroundBlocks) CreateMap(source []byte, encoding commit.Encoding, width int, height int, binding MapBinding) Handle {
	handle, _ := b.create(b.mapRequest(MapIdentity(source, encoding, width, height), source, binding, false, true))
	return handle
}

// CreateMapOptional is CreateMap, but returns NoHandle and an error wrapping ErrOutOfVRAM if
// the region has no room
func (b *BackgroundBlocks) CreateMapOptional(source []byte, encoding commit.Encoding, width int, height int, binding MapBinding) (Handle, error) {
	return b.create(b.mapRequest(MapIdentity(source, encoding, width, height), source, binding, false, false))
}

// AllocateRawMap allocates room for a map that the caller will write through VRAM. Panics if
// the region has no room.
func (b *BackgroundBlocks) AllocateRawMap(width int, height int, binding MapBinding) Handle {
	handle, _ := b.create(b.mapRequest(MapIdentity(nil, commit.EncodingNone, width, height), nil, binding, true, true))
	return handle
}

// AllocateRawMapOptional is AllocateRawMap, but returns NoHandle and an error wrapping
// ErrOutOfVRAM if the region has no room
func (b *BackgroundBlocks) AllocateRawMapOptional(width int, height int, binding MapBinding) (Handle, error) {
	return b.create(b.mapRequest(MapIdentity(nil, commit.EncodingNone, width, height), nil, binding, true, false))
}

// Kind returns the kind of resource held by a block
func (b *BackgroundBlocks) Kind(handle Handle) Kind {
	_, info := b.usedInfo(handle)
	return info.identity.Kind
}

// Charblock returns the charblock a tile set starts in
func (b *BackgroundBlocks) Charblock(handle Handle) int {
	b.checkKind(handle, KindTiles)
	return b.Offset(handle) / backgroundCharblockUnits
}

// TileBase returns the index of a tile set's first tile, counted from the start of its charblock
func (b *BackgroundBlocks) TileBase(handle Handle) int {
	info := b.checkKind(handle, KindTiles)
	return (b.Offset(handle) % backgroundCharblockUnits) * b.unitBytes / tileBytes(info.identity.BPP)
}

// Screenblock returns the screenblock a map starts in
func (b *BackgroundBlocks) Screenblock(handle Handle) int {
	b.checkKind(handle, KindMap)
	return b.Offset(handle)
}

// MapTiles returns the tile set a map is bound to, or NoHandle
func (b *BackgroundBlocks) MapTiles(handle Handle) Handle {
	return b.checkKind(handle, KindMap).binding.Tiles
}

// MapPalette returns the palette bank a map is bound to
func (b *BackgroundBlocks) MapPalette(handle Handle) int {
	return b.checkKind(handle, KindMap).binding.PaletteBank
}

// CellOffset returns the value added to each of a map's cells when it is committed
func (b *BackgroundBlocks) CellOffset(handle Handle) uint16 {
	return b.checkKind(handle, KindMap).cellOffset
}

// SetMapTiles binds a map to a different tile set, flagging it dirty if the binding changed
func (b *BackgroundBlocks) SetMapTiles(handle Handle, tiles Handle) {
	info := b.checkKind(handle, KindMap)

	binding := MapBinding{Tiles: tiles, PaletteBank: info.binding.PaletteBank}
	b.rebind(handle, binding, b.cellOffset(binding))
	b.validateIfRequested()
}

// SetMapPalette binds a map to a different palette bank, flagging it dirty if the binding
// changed
func (b *BackgroundBlocks) SetMapPalette(handle Handle, paletteBank int) {
	info := b.checkKind(handle, KindMap)

	binding := MapBinding{Tiles: info.binding.Tiles, PaletteBank: paletteBank}
	b.rebind(handle, binding, b.cellOffset(binding))
	b.validateIfRequested()
}
