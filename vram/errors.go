package vram

import "github.com/cockroachdb/errors"

// ErrOutOfVRAM is returned by optional operations when the region has no room for the
// request, even after reclaiming pending blocks
var ErrOutOfVRAM = errors.New("out of video memory")

// ErrInvalidHandle is the cause of the panic raised when a handle that does not refer to a
// live block is passed to a manager
var ErrInvalidHandle = errors.New("invalid handle")

func invalidRequest(format string, args ...any) {
	panic(errors.AssertionFailedf(format, args...))
}
