package sim

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/ppu/memutils/commit"
)

// Run-length streams start with a 4-byte header: the marker 0x30 followed by the 24-bit
// little-endian decoded size. Each chunk is a flag byte and its data. A set high bit means
// the next byte repeats (flag&0x7f)+3 times, otherwise (flag&0x7f)+1 literal bytes follow.
const (
	runLengthMarker = 0x30
	minRun          = 3
	maxRun          = 0x7f + minRun
	maxLiterals     = 0x80
)

// EncodeRunLength compresses src into a run-length stream
func EncodeRunLength(src []byte) []byte {
	out := []byte{runLengthMarker, byte(len(src)), byte(len(src) >> 8), byte(len(src) >> 16)}

	var literals []byte
	flush := func() {
		for len(literals) > 0 {
			n := len(literals)
			if n > maxLiterals {
				n = maxLiterals
			}
			out = append(out, byte(n-1))
			out = append(out, literals[:n]...)
			literals = literals[n:]
		}
	}

	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < maxRun && src[i+run] == src[i] {
			run++
		}

		if run >= minRun {
			flush()
			out = append(out, 0x80|byte(run-minRun), src[i])
		} else {
			literals = append(literals, src[i:i+run]...)
		}
		i += run
	}
	flush()

	return out
}

// DecodeRunLength expands a run-length stream into dst, which must be at least as long as
// the decoded size in the stream header
func DecodeRunLength(src []byte, dst []byte) error {
	if len(src) < 4 || src[0] != runLengthMarker {
		return errors.New("missing run-length header")
	}

	size := int(src[1]) | int(src[2])<<8 | int(src[3])<<16
	if size > len(dst) {
		return errors.Newf("run-length stream decodes to %d bytes, but the destination holds %d", size, len(dst))
	}

	in := 4
	out := 0
	for out < size {
		if in >= len(src) {
			return errors.Newf("run-length stream ended after %d of %d bytes", out, size)
		}

		flag := src[in]
		in++

		if flag&0x80 != 0 {
			if in >= len(src) {
				return errors.New("run-length stream ended inside a run")
			}

			n := int(flag&0x7f) + minRun
			if out+n > size {
				return errors.New("run-length run overflows the decoded size")
			}
			for i := 0; i < n; i++ {
				dst[out+i] = src[in]
			}
			in++
			out += n
			continue
		}

		n := int(flag) + 1
		if in+n > len(src) || out+n > size {
			return errors.New("run-length literals overflow the stream")
		}
		copy(dst[out:], src[in:in+n])
		in += n
		out += n
	}

	return nil
}

// Decoder expands the encodings the simulator produces
var Decoder = commit.DecoderFunc(func(encoding commit.Encoding, src []byte, dst []byte) error {
	if encoding != commit.EncodingRunLength {
		return errors.Newf("the simulator can't decode %s", encoding)
	}
	return DecodeRunLength(src, dst)
})
