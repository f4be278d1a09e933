package commit

// PassStats counts the work performed by one or more commit passes
type PassStats struct {
	// BytesWritten is the number of bytes of display memory written, whether by copy or decode
	BytesWritten int
	// DMATransfers is the number of jobs uploaded with a single hardware transfer
	DMATransfers int
	// CPUCopies is the number of jobs uploaded with a CPU copy loop
	CPUCopies int
	// BlocksDecoded is the number of jobs expanded by a Decoder
	BlocksDecoded int
	// JobsSkipped is the number of queued jobs dropped because their block was repurposed
	// before the pass ran
	JobsSkipped int
}

func (s *PassStats) Add(other PassStats) {
	s.BytesWritten += other.BytesWritten
	s.DMATransfers += other.DMATransfers
	s.CPUCopies += other.CPUCopies
	s.BlocksDecoded += other.BlocksDecoded
	s.JobsSkipped += other.JobsSkipped
}
