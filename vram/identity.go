package vram

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/ppu/memutils/commit"
)

// Kind is the category of resource a block holds
type Kind uint8

const (
	KindTiles Kind = iota + 1
	KindMap
	KindSpriteTiles
)

var kindMapping = map[Kind]string{
	KindTiles:       "Tiles",
	KindMap:         "Map",
	KindSpriteTiles: "SpriteTiles",
}

func (k Kind) String() string {
	str, ok := kindMapping[k]
	if !ok {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return str
}

// sourceKey identifies client-owned source data by location rather than by content: two
// slices over the same backing array with the same length are the same source
type sourceKey struct {
	data   unsafe.Pointer
	length int
}

func keyOf(source []byte) sourceKey {
	return sourceKey{
		data:   unsafe.Pointer(unsafe.SliceData(source)),
		length: len(source),
	}
}

// Identity is the deduplication key of a resource: where its source bytes live, how they are
// encoded and what shape they describe. Uploads with equal identities share a block.
type Identity struct {
	Kind     Kind
	source   sourceKey
	Encoding commit.Encoding

	// BPP is the color depth of tile resources, 4 or 8
	BPP int
	// Tiles is the number of tiles in tile resources
	Tiles int
	// Width and Height are the dimensions of map resources in cells
	Width  int
	Height int
}

// TilesIdentity describes a background tile set
func TilesIdentity(source []byte, encoding commit.Encoding, bpp int, tiles int) Identity {
	return Identity{
		Kind:     KindTiles,
		source:   keyOf(source),
		Encoding: encoding,
		BPP:      bpp,
		Tiles:    tiles,
	}
}

// MapIdentity describes a background tile map of 16-bit cells
func MapIdentity(source []byte, encoding commit.Encoding, width int, height int) Identity {
	return Identity{
		Kind:     KindMap,
		source:   keyOf(source),
		Encoding: encoding,
		Width:    width,
		Height:   height,
	}
}

// SpriteTilesIdentity describes a set of sprite tiles
func SpriteTilesIdentity(source []byte, encoding commit.Encoding, bpp int, tiles int) Identity {
	return Identity{
		Kind:     KindSpriteTiles,
		source:   keyOf(source),
		Encoding: encoding,
		BPP:      bpp,
		Tiles:    tiles,
	}
}

// withSource returns a copy of the identity describing the same shape over different source data
func (i Identity) withSource(source []byte, encoding commit.Encoding) Identity {
	i.source = keyOf(source)
	i.Encoding = encoding
	return i
}

func tileBytes(bpp int) int {
	return bpp * 8
}

// byteSize returns the number of bytes of display memory the resource occupies once uploaded
func (i Identity) byteSize() int {
	switch i.Kind {
	case KindTiles, KindSpriteTiles:
		return i.Tiles * tileBytes(i.BPP)
	case KindMap:
		return i.Width * i.Height * 2
	}
	return 0
}

func (i Identity) validate() error {
	if !i.Encoding.IsValid() {
		return errors.Newf("unknown encoding %s", i.Encoding)
	}

	switch i.Kind {
	case KindTiles, KindSpriteTiles:
		if i.BPP != 4 && i.BPP != 8 {
			return errors.Newf("%s must be 4 or 8 bits per pixel, not %d", i.Kind, i.BPP)
		}
		if i.Tiles < 1 {
			return errors.Newf("%s must contain at least one tile, not %d", i.Kind, i.Tiles)
		}
	case KindMap:
		if i.Width < 1 || i.Height < 1 {
			return errors.Newf("map dimensions %dx%d are invalid", i.Width, i.Height)
		}
	default:
		return errors.Newf("unknown resource kind %s", i.Kind)
	}

	return nil
}
