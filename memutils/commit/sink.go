package commit

// Sink is the display memory that committed blocks are written into. Production code backs
// it with hardware memory; BufferSink backs it with a plain byte slice.
type Sink interface {
	// Region returns a writable view of size bytes of display memory starting at offset
	Region(offset, size int) []byte
	// DMACopy copies src into display memory at offset with a single hardware transfer
	DMACopy(offset int, src []byte)
}

// BufferSink is a Sink over an in-memory byte slice
type BufferSink struct {
	Memory       []byte
	DMATransfers int
}

var _ Sink = &BufferSink{}

// NewBufferSink creates a zeroed BufferSink of the requested number of bytes
func NewBufferSink(size int) *BufferSink {
	return &BufferSink{Memory: make([]byte, size)}
}

func (s *BufferSink) Region(offset, size int) []byte {
	return s.Memory[offset : offset+size : offset+size]
}

func (s *BufferSink) DMACopy(offset int, src []byte) {
	copy(s.Memory[offset:offset+len(src)], src)
	s.DMATransfers++
}
