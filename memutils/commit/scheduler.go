package commit

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/vkngwrapper/ppu/memutils/metadata"
)

// Job is a single block upload
type Job struct {
	Block metadata.BlockID
	// Offset is the destination in bytes from the start of the sink
	Offset int
	// Size is the size of the destination block in bytes
	Size     int
	Source   []byte
	Encoding Encoding
	// CellOffset is added to every little-endian 16-bit cell as it is written. A job with a
	// non-zero CellOffset can't be uploaded with a raw DMA transfer.
	CellOffset uint16
	// Generation is an opaque value owned by whoever enqueued the job, usually used to tell
	// whether the block has been reallocated since
	Generation uint64
}

//go:generate mockgen -destination=mocks/mocks.go -package=mock_commit . Decoder,Sink

// Scheduler holds the dirty blocks waiting to be committed to display memory. Blocks with
// plain source bytes and blocks that must be decoded are kept in separate queues, since they
// are drained by separate calls with different costs.
type Scheduler struct {
	plain      []Job
	compressed []Job

	// Valid, if set, is consulted for each job as its queue is drained. Jobs that it rejects
	// are skipped.
	Valid func(job Job) bool
	// Committed, if set, is called after each job is successfully written
	Committed func(job Job)
}

// Reset discards both queues
func (s *Scheduler) Reset() {
	s.plain = s.plain[:0]
	s.compressed = s.compressed[:0]
}

// Enqueue adds a job to the queue matching its encoding
func (s *Scheduler) Enqueue(job Job) {
	if job.Encoding.IsCompressed() {
		s.compressed = append(s.compressed, job)
	} else {
		s.plain = append(s.plain, job)
	}
}

// Pending returns the number of jobs waiting in the plain and decode queues
func (s *Scheduler) Pending() (plain int, compressed int) {
	return len(s.plain), len(s.compressed)
}

func (s *Scheduler) valid(job Job) bool {
	return s.Valid == nil || s.Valid(job)
}

func (s *Scheduler) committed(job Job) {
	if s.Committed != nil {
		s.Committed(job)
	}
}

// CommitPlain drains the plain queue into sink. When useDMA is set, jobs without a cell offset
// are uploaded with one DMA transfer each. If a job fails, it is dropped and the jobs after it
// stay queued for the next call.
func (s *Scheduler) CommitPlain(sink Sink, useDMA bool) (PassStats, error) {
	var stats PassStats

	for i, job := range s.plain {
		if !s.valid(job) {
			stats.JobsSkipped++
			continue
		}

		jobStats, err := WriteJob(sink, nil, job, useDMA)
		if err != nil {
			s.plain = s.plain[:copy(s.plain, s.plain[i+1:])]
			return stats, err
		}
		stats.Add(jobStats)
		s.committed(job)
	}

	s.plain = s.plain[:0]
	return stats, nil
}

// CommitCompressed drains the decode queue into sink, expanding each job with decoder. A job
// that fails to decode is dropped and the jobs after it stay queued.
func (s *Scheduler) CommitCompressed(sink Sink, decoder Decoder) (PassStats, error) {
	var stats PassStats

	for i, job := range s.compressed {
		if !s.valid(job) {
			stats.JobsSkipped++
			continue
		}

		jobStats, err := WriteJob(sink, decoder, job, false)
		if err != nil {
			s.compressed = s.compressed[:copy(s.compressed, s.compressed[i+1:])]
			return stats, err
		}
		stats.Add(jobStats)
		s.committed(job)
	}

	s.compressed = s.compressed[:0]
	return stats, nil
}

// WriteJob uploads a single job to sink immediately. decoder is only required for jobs with a
// compressed encoding.
func WriteJob(sink Sink, decoder Decoder, job Job, useDMA bool) (PassStats, error) {
	var stats PassStats

	if job.Size < 1 || job.Offset < 0 {
		return stats, errors.Errorf("job for block %d has invalid destination: offset %d size %d", job.Block, job.Offset, job.Size)
	}

	if job.Encoding.IsCompressed() {
		if decoder == nil {
			return stats, errors.Errorf("job for block %d is %s encoded but no decoder is available", job.Block, job.Encoding)
		}

		dst := sink.Region(job.Offset, job.Size)
		err := decoder.Decode(job.Encoding, job.Source, dst)
		if err != nil {
			return stats, errors.Wrapf(err, "failed to decode %s block %d", job.Encoding, job.Block)
		}

		if job.CellOffset != 0 {
			addCellOffset(dst, dst, job.CellOffset)
		}

		stats.BlocksDecoded++
		stats.BytesWritten += job.Size
		return stats, nil
	}

	if len(job.Source) > job.Size {
		return stats, errors.Errorf("job for block %d has %d source bytes but the block only holds %d", job.Block, len(job.Source), job.Size)
	}

	if len(job.Source) == 0 {
		return stats, nil
	}

	if useDMA && job.CellOffset == 0 {
		sink.DMACopy(job.Offset, job.Source)
		stats.DMATransfers++
	} else {
		dst := sink.Region(job.Offset, len(job.Source))
		if job.CellOffset == 0 {
			copy(dst, job.Source)
		} else {
			addCellOffset(dst, job.Source, job.CellOffset)
		}
		stats.CPUCopies++
	}

	stats.BytesWritten += len(job.Source)
	return stats, nil
}

// addCellOffset writes each 16-bit cell of src plus offset into dst. dst and src may be the
// same slice. A trailing odd byte is copied as-is.
func addCellOffset(dst, src []byte, offset uint16) {
	cells := len(src) / 2
	for i := 0; i < cells; i++ {
		cell := binary.LittleEndian.Uint16(src[i*2:])
		binary.LittleEndian.PutUint16(dst[i*2:], cell+offset)
	}

	if len(src)%2 != 0 {
		dst[len(src)-1] = src[len(src)-1]
	}
}
