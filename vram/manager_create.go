package vram

import (
	"io"

	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/ppu/memutils/commit"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific manager behaviors to activate or deactivate
type CreateFlags int32

var createFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	createFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return createFlagsMapping.FlagsToString(f)
}

const (
	// CreateValidate runs a full consistency check of the region after every operation that
	// modifies it, and panics if the check fails. This is slow, but unlike the debug_mem_utils
	// build tag it can be turned on for a single manager.
	CreateValidate CreateFlags = 1 << iota
	// CreateDeferUploads never uploads a block at creation time. Every new block is flagged
	// dirty and written by the next commit pass instead.
	CreateDeferUploads
)

func init() {
	CreateValidate.Register("CreateValidate")
	CreateDeferUploads.Register("CreateDeferUploads")
}

const (
	backgroundUnitBytes      = 2 * 1024
	backgroundUnits          = 32
	backgroundCharblockUnits = 8
	defaultBackgroundItems   = 64

	spriteUnitBytes    = 32
	spriteUnits        = 1024
	defaultSpriteItems = 128
)

// BackgroundOptions contains optional settings when creating a BackgroundBlocks manager. It
// is valid to leave all the fields blank.
type BackgroundOptions struct {
	// Flags indicates specific manager behaviors to activate or deactivate
	Flags CreateFlags
	// MaxItems is the number of blocks the region may be split into at once. It defaults to 64.
	MaxItems int
	// Sink is the display memory blocks are written to. It defaults to a BufferSink covering
	// the whole background region.
	Sink commit.Sink
	// Decoder expands compressed sources. Creating a compressed block without one panics.
	Decoder commit.Decoder
}

// SpriteOptions contains optional settings when creating a SpriteTiles manager. It is valid
// to leave all the fields blank.
type SpriteOptions struct {
	// Flags indicates specific manager behaviors to activate or deactivate
	Flags CreateFlags
	// MaxItems is the number of blocks the region may be split into at once. It defaults to 128.
	MaxItems int
	// Sink is the display memory blocks are written to. It defaults to a BufferSink covering
	// the whole sprite tile region.
	Sink commit.Sink
	// Decoder expands compressed sources. Creating a compressed block without one panics.
	Decoder commit.Decoder
}

type regionConfig struct {
	name      string
	unitBytes int
	units     int
	maxItems  int
	flags     CreateFlags
	sink      commit.Sink
	decoder   commit.Decoder
}

func (c *regionConfig) applyDefaults(defaultItems int) {
	if c.maxItems == 0 {
		c.maxItems = defaultItems
	}

	if c.sink == nil {
		c.sink = commit.NewBufferSink(c.unitBytes * c.units)
	}
}

func discardIfNil(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard))
	}
	return logger
}
