package vram

import (
	"github.com/vkngwrapper/ppu/memutils"
	"github.com/vkngwrapper/ppu/memutils/commit"
	"github.com/vkngwrapper/ppu/memutils/metadata"
	"golang.org/x/exp/slog"
)

// SpriteTiles manages the sprite tile region of display memory. The region is split into
// 32-byte units, one per 4bpp tile, so a block's offset is also the tile index sprites use to
// refer to it.
type SpriteTiles struct {
	*region
}

// NewSpriteTiles creates a manager for the sprite tile region
//
// logger - Receives allocation traces at debug level and status dumps before fatal errors.
// It may be nil.
//
// options - Optional parameters: it is valid to leave all the fields blank
func NewSpriteTiles(logger *slog.Logger, options SpriteOptions) *SpriteTiles {
	config := regionConfig{
		name:      "Sprite",
		unitBytes: spriteUnitBytes,
		units:     spriteUnits,
		maxItems:  options.MaxItems,
		flags:     options.Flags,
		sink:      options.Sink,
		decoder:   options.Decoder,
	}
	config.applyDefaults(defaultSpriteItems)

	return &SpriteTiles{region: newRegion(logger, config)}
}

// 8bpp tiles are two units each and must start on an even tile index
var (
	sprite4bppPadding = metadata.NoPadding{}
	sprite8bppPadding = metadata.AlignedPadding{Alignment: 2}
)

func (s *SpriteTiles) request(identity Identity, source []byte, raw bool, required bool) createRequest {
	if err := identity.validate(); err != nil {
		invalidRequest("invalid sprite tiles request: %v", err)
	}

	units := memutils.DivCeil(identity.byteSize(), s.unitBytes)
	if units > spriteUnits {
		invalidRequest("sprite tiles of %d bytes can never fit in the region", identity.byteSize())
	}

	var policy metadata.PaddingPolicy = sprite4bppPadding
	if identity.BPP == 8 {
		policy = sprite8bppPadding
	}

	return createRequest{
		identity: identity,
		source:   source,
		units:    units,
		policy:   policy,
		raw:      raw,
		required: required,
	}
}

// FindTiles returns the block already holding a set of sprite tiles, retaining it, or false
// if there is none
func (s *SpriteTiles) FindTiles(source []byte, encoding commit.Encoding, bpp int, tiles int) (Handle, bool) {
	identity := SpriteTilesIdentity(source, encoding, bpp, tiles)
	if err := identity.validate(); err != nil {
		invalidRequest("invalid sprite tiles request: %v", err)
	}
	return s.find(identity)
}

// CreateTiles returns a block holding a set of sprite tiles, allocating and uploading it if it
// is not already present. Panics if the region has no room.
func (s *SpriteTiles) CreateTiles(source []byte, encoding commit.Encoding, bpp int, tiles int) Handle {
	handle, _ := s.create(s.request(SpriteTilesIdentity(source, encoding, bpp, tiles), source, false, true))
	return handle
}

// CreateTilesOptional is CreateTiles, but returns NoHandle and an error wrapping ErrOutOfVRAM
// if the region has no room
func (s *SpriteTiles) CreateTilesOptional(source []byte, encoding commit.Encoding, bpp int, tiles int) (Handle, error) {
	return s.create(s.request(SpriteTilesIdentity(source, encoding, bpp, tiles), source, false, false))
}

// AllocateRaw allocates room for sprite tiles that the caller will write through VRAM. Raw
// blocks are never deduplicated. Panics if the region has no room.
func (s *SpriteTiles) AllocateRaw(bpp int, tiles int) Handle {
	handle, _ := s.create(s.request(SpriteTilesIdentity(nil, commit.EncodingNone, bpp, tiles), nil, true, true))
	return handle
}

// AllocateRawOptional is AllocateRaw, but returns NoHandle and an error wrapping ErrOutOfVRAM
// if the region has no room
func (s *SpriteTiles) AllocateRawOptional(bpp int, tiles int) (Handle, error) {
	return s.create(s.request(SpriteTilesIdentity(nil, commit.EncodingNone, bpp, tiles), nil, true, false))
}

// TileIndex returns the index sprites use to refer to the first tile of a block
func (s *SpriteTiles) TileIndex(handle Handle) int {
	return s.Offset(handle)
}
