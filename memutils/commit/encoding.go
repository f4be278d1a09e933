package commit

import "fmt"

// Encoding identifies how a block's source bytes are stored. Anything other than
// EncodingNone must be expanded by a Decoder when the block is committed.
type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingLZ77
	EncodingRunLength
	EncodingHuffman
)

var encodingMapping = map[Encoding]string{
	EncodingNone:      "None",
	EncodingLZ77:      "LZ77",
	EncodingRunLength: "RunLength",
	EncodingHuffman:   "Huffman",
}

func (e Encoding) String() string {
	str, ok := encodingMapping[e]
	if !ok {
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
	return str
}

// IsCompressed returns true if blocks with this encoding must go through the decode queue
func (e Encoding) IsCompressed() bool {
	return e != EncodingNone
}

// IsValid returns true if this is one of the known encodings
func (e Encoding) IsValid() bool {
	_, ok := encodingMapping[e]
	return ok
}

// Decoder expands compressed source bytes directly into display memory. dst is exactly the
// size of the destination block.
type Decoder interface {
	Decode(encoding Encoding, src []byte, dst []byte) error
}

// DecoderFunc adapts a plain function to the Decoder interface
type DecoderFunc func(encoding Encoding, src []byte, dst []byte) error

func (f DecoderFunc) Decode(encoding Encoding, src []byte, dst []byte) error {
	return f(encoding, src, dst)
}
