package metadata

import "github.com/pkg/errors"

type blockRecord struct {
	start      int
	size       int
	status     BlockStatus
	usageCount int
	userData   any

	prev BlockID
	next BlockID
}

// blockStore is a fixed-capacity arena of block records. Records are linked in display-memory
// order through prev/next ids, and unused ids are kept on a stack so that acquiring and
// releasing a record is O(1). A record with size 0 is not live.
type blockStore struct {
	records []blockRecord
	freeIDs []BlockID
	first   BlockID
	last    BlockID
	count   int
}

func (s *blockStore) init(maxItems int) {
	if len(s.records) == maxItems {
		for i := range s.records {
			s.records[i] = blockRecord{prev: NoBlock, next: NoBlock}
		}
	} else {
		s.records = make([]blockRecord, maxItems)
	}

	s.freeIDs = s.freeIDs[:0]
	for i := maxItems - 1; i >= 0; i-- {
		s.freeIDs = append(s.freeIDs, BlockID(i))
	}

	s.first = NoBlock
	s.last = NoBlock
	s.count = 0
}

func (s *blockStore) capacity() int {
	return len(s.records)
}

func (s *blockStore) available() int {
	return len(s.freeIDs)
}

func (s *blockStore) isLive(id BlockID) bool {
	return id >= 0 && int(id) < len(s.records) && s.records[id].size > 0
}

func (s *blockStore) get(id BlockID) *blockRecord {
	return &s.records[id]
}

// insertAfter places record in the sequence directly after id and returns the id it was
// stored under. Passing NoBlock inserts at the head of the sequence.
func (s *blockStore) insertAfter(id BlockID, record blockRecord) BlockID {
	if len(s.freeIDs) == 0 {
		panic(errors.Errorf("block store exhausted: all %d records are in use", len(s.records)))
	}

	newID := s.freeIDs[len(s.freeIDs)-1]
	s.freeIDs = s.freeIDs[:len(s.freeIDs)-1]

	var next BlockID
	if id == NoBlock {
		next = s.first
		s.first = newID
	} else {
		next = s.records[id].next
		s.records[id].next = newID
	}

	if next == NoBlock {
		s.last = newID
	} else {
		s.records[next].prev = newID
	}

	record.prev = id
	record.next = next
	s.records[newID] = record
	s.count++

	return newID
}

// removeAfter unlinks the record following id (the head for NoBlock), returns its id to the
// free stack and returns the removed id.
func (s *blockStore) removeAfter(id BlockID) BlockID {
	var removed BlockID
	if id == NoBlock {
		removed = s.first
	} else {
		removed = s.records[id].next
	}

	if removed == NoBlock {
		panic(errors.Errorf("no record follows block %d", id))
	}

	next := s.records[removed].next
	if id == NoBlock {
		s.first = next
	} else {
		s.records[id].next = next
	}

	if next == NoBlock {
		s.last = id
	} else {
		s.records[next].prev = id
	}

	s.records[removed] = blockRecord{prev: NoBlock, next: NoBlock}
	s.freeIDs = append(s.freeIDs, removed)
	s.count--

	return removed
}
