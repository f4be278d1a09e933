package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/ppu/memutils"
)

// BlockMetadata partitions a fixed-size region of hardware memory into contiguous blocks. It
// manages allocation, reference counting and deferred reclamation of those blocks, but has no
// knowledge of what is stored in them: consumers attach that as user data.
//
// Blocks move through three states. Alloc turns part of a Free block into a Used block. When
// the last reference to a Used block is released it becomes PendingRemoval: its contents are
// still valid and it may be resurrected, but it also counts as reclaimable space. Reclaim turns
// every PendingRemoval block into Free space, merging adjacent free space as it goes.
//
// The blocks always partition the region: ordered by offset, each block starts where the
// previous one ended, the first starts at 0 and the last ends at Capacity().
type BlockMetadata struct {
	capacity int
	maxItems int

	store blockStore
	index freeIndex

	allocCount   int
	usedSize     int
	freeCount    int
	freeSize     int
	pendingCount int
	pendingSize  int
}

var _ memutils.Validatable = &BlockMetadata{}

// NewBlockMetadata creates a BlockMetadata that can track at most maxItems blocks at once.
// Init must be called before it is used.
func NewBlockMetadata(maxItems int) *BlockMetadata {
	if err := memutils.CheckPositive(maxItems, "maxItems"); err != nil {
		panic(err)
	}

	return &BlockMetadata{
		maxItems: maxItems,
		index:    newFreeIndex(),
	}
}

// Init prepares the metadata to manage a region of the provided number of units. A single
// Free block will span the entire region.
func (m *BlockMetadata) Init(capacity int) {
	if err := memutils.CheckPositive(capacity, "capacity"); err != nil {
		panic(err)
	}

	m.capacity = capacity
	m.Clear()
}

// Clear instantly frees every block in the region without reporting them
func (m *BlockMetadata) Clear() {
	m.store.init(m.maxItems)
	m.index.clear()

	m.allocCount = 0
	m.usedSize = 0
	m.pendingCount = 0
	m.pendingSize = 0

	id := m.store.insertAfter(NoBlock, blockRecord{
		start:  0,
		size:   m.capacity,
		status: BlockFree,
	})
	m.index.insert(id, m.store.get(id))
	m.freeCount = 1
	m.freeSize = m.capacity
}

// Capacity returns the size of the region in units
func (m *BlockMetadata) Capacity() int { return m.capacity }

// MaxItems returns the maximum number of blocks the region can be split into
func (m *BlockMetadata) MaxItems() int { return m.maxItems }

// BlockCount returns the number of blocks the region is currently split into
func (m *BlockMetadata) BlockCount() int { return m.store.count }

// AllocationCount returns the number of Used blocks
func (m *BlockMetadata) AllocationCount() int { return m.allocCount }

// FreeRegionsCount returns the number of Free blocks. PendingRemoval blocks are not counted.
func (m *BlockMetadata) FreeRegionsCount() int { return m.freeCount }

// SumFreeSize returns the number of units in Free blocks, the space that can be allocated
// without reclaiming anything
func (m *BlockMetadata) SumFreeSize() int { return m.freeSize }

// SumPendingSize returns the number of units in PendingRemoval blocks
func (m *BlockMetadata) SumPendingSize() int { return m.pendingSize }

// PendingRemovalCount returns the number of PendingRemoval blocks
func (m *BlockMetadata) PendingRemovalCount() int { return m.pendingCount }

// SumUsedSize returns the number of units in Used blocks
func (m *BlockMetadata) SumUsedSize() int { return m.usedSize }

// IsEmpty will return true if this region has no Used blocks
func (m *BlockMetadata) IsEmpty() bool { return m.allocCount == 0 }

func (m *BlockMetadata) getBlock(id BlockID) (*blockRecord, error) {
	if !m.store.isLive(id) {
		return nil, errors.Errorf("received block id %d that was incompatible with this metadata", id)
	}

	return m.store.get(id), nil
}

func (m *BlockMetadata) getUsedBlock(id BlockID) (*blockRecord, error) {
	block, err := m.getBlock(id)
	if err != nil {
		return nil, err
	}

	if block.status != BlockUsed {
		return nil, errors.Errorf("block %d is %s, not Used", id, block.status)
	}

	return block, nil
}

func (m *BlockMetadata) addTotals(status BlockStatus, size int) {
	switch status {
	case BlockFree:
		m.freeCount++
		m.freeSize += size
	case BlockPendingRemoval:
		m.pendingCount++
		m.pendingSize += size
	case BlockUsed:
		m.allocCount++
		m.usedSize += size
	}
}

func (m *BlockMetadata) removeTotals(status BlockStatus, size int) {
	switch status {
	case BlockFree:
		m.freeCount--
		m.freeSize -= size
	case BlockPendingRemoval:
		m.pendingCount--
		m.pendingSize -= size
	case BlockUsed:
		m.allocCount--
		m.usedSize -= size
	}
}

// Offset returns the starting unit of a live block
func (m *BlockMetadata) Offset(id BlockID) (int, error) {
	block, err := m.getBlock(id)
	if err != nil {
		return 0, err
	}

	return block.start, nil
}

// Size returns the size in units of a live block
func (m *BlockMetadata) Size(id BlockID) (int, error) {
	block, err := m.getBlock(id)
	if err != nil {
		return 0, err
	}

	return block.size, nil
}

// Status returns the lifecycle state of a live block
func (m *BlockMetadata) Status(id BlockID) (BlockStatus, error) {
	block, err := m.getBlock(id)
	if err != nil {
		return BlockFree, err
	}

	return block.status, nil
}

// UsageCount returns the number of outstanding references to a block. It is 0 for any block
// that is not Used.
func (m *BlockMetadata) UsageCount(id BlockID) (int, error) {
	block, err := m.getBlock(id)
	if err != nil {
		return 0, err
	}

	return block.usageCount, nil
}

// UserData returns the consumer data attached to a Used or PendingRemoval block
func (m *BlockMetadata) UserData(id BlockID) (any, error) {
	block, err := m.getBlock(id)
	if err != nil {
		return nil, err
	}

	if block.status == BlockFree {
		return nil, errors.New("user data cannot be retrieved for a free block")
	}

	return block.userData, nil
}

// SetUserData replaces the consumer data attached to a Used block
func (m *BlockMetadata) SetUserData(id BlockID, userData any) error {
	block, err := m.getUsedBlock(id)
	if err != nil {
		return err
	}

	block.userData = userData
	return nil
}

// CreateAllocationRequest finds a block that can hold size units with the padding demanded by
// policy, without modifying the metadata. The returned AllocationRequest can be passed to
// Alloc to commit the allocation.
//
// PendingRemoval blocks are only considered when allowPending is true, and a PendingRemoval
// block that fits exactly is preferred over splitting free space. Otherwise the smallest
// eligible block that fits is chosen.
//
// The boolean return value is false if no block can hold the allocation right now. Reclaiming
// pending blocks may make room.
func (m *BlockMetadata) CreateAllocationRequest(size int, policy PaddingPolicy, allowPending bool) (bool, AllocationRequest, error) {
	var allocRequest AllocationRequest

	if size < 1 {
		return false, allocRequest, errors.Errorf("invalid allocation size: %d", size)
	}

	if policy == nil {
		policy = NoPadding{}
	}

	memutils.DebugValidate(m)

	available := m.freeSize
	if allowPending {
		available += m.pendingSize
	}

	// Is the region big enough?
	if size > available {
		return false, allocRequest, nil
	}

	if allowPending && m.pendingCount > 0 {
		// Prefer a pending block that fits exactly
		found := false
		m.index.ascendFrom(size, func(entry freeEntry) bool {
			block := m.store.get(entry.id)
			if block.status != BlockPendingRemoval {
				return true
			}

			padding := policy.Padding(block.start, size)
			if padding < 0 || block.size != size+padding {
				return true
			}

			if !m.checkBlock(entry.id, block, size, padding, &allocRequest) {
				return true
			}

			found = true
			return false
		})

		if found {
			return true, allocRequest, nil
		}
	}

	// Best fit: entries are visited smallest first, so the first one that fits wins
	found := false
	m.index.ascendFrom(size, func(entry freeEntry) bool {
		block := m.store.get(entry.id)
		if block.status == BlockPendingRemoval && !allowPending {
			return true
		}

		padding := policy.Padding(block.start, size)
		if padding < 0 || block.size < size+padding {
			return true
		}

		if !m.checkBlock(entry.id, block, size, padding, &allocRequest) {
			return true
		}

		found = true
		return false
	})

	return found, allocRequest, nil
}

func (m *BlockMetadata) checkBlock(id BlockID, block *blockRecord, size, padding int, allocRequest *AllocationRequest) bool {
	// Splitting off padding and the trailing excess each need a spare record
	needed := 0
	if padding > 0 {
		needed++
	}
	if block.size > size+padding {
		needed++
	}

	if m.store.available() < needed {
		return false
	}

	allocRequest.Block = id
	allocRequest.Offset = block.start + padding
	allocRequest.Size = size
	allocRequest.Padding = padding
	allocRequest.Reused = block.status == BlockPendingRemoval

	return true
}

// Alloc commits an AllocationRequest created by CreateAllocationRequest. The candidate block
// becomes a Used block with a single reference and the provided user data, and any padding or
// excess units are split off into new blocks that keep the candidate's previous status.
func (m *BlockMetadata) Alloc(req AllocationRequest, userData any) error {
	block, err := m.getBlock(req.Block)
	if err != nil {
		return err
	}

	switch block.status {
	case BlockUsed:
		return errors.Errorf("allocation request targets block %d which is already in use", req.Block)
	case BlockPendingRemoval:
		if !req.Reused {
			return errors.Errorf("allocation request targets block %d which is pending removal", req.Block)
		}
	}

	if block.start+req.Padding != req.Offset {
		return errors.New("allocation request had an offset that was incompatible with its block")
	}

	if block.size < req.Size+req.Padding {
		return errors.New("allocation request had a block too small for the request")
	}

	prevStatus := block.status
	m.index.remove(req.Block, block)
	m.removeTotals(prevStatus, block.size)

	// Split the padding off in front
	if req.Padding > 0 {
		paddingID := m.store.insertAfter(block.prev, blockRecord{
			start:  block.start,
			size:   req.Padding,
			status: prevStatus,
		})
		m.index.insert(paddingID, m.store.get(paddingID))
		m.addTotals(prevStatus, req.Padding)

		block.start += req.Padding
		block.size -= req.Padding
	}

	// Split the excess off behind
	if block.size > req.Size {
		excessID := m.store.insertAfter(req.Block, blockRecord{
			start:  block.start + req.Size,
			size:   block.size - req.Size,
			status: prevStatus,
		})
		m.index.insert(excessID, m.store.get(excessID))
		m.addTotals(prevStatus, block.size-req.Size)

		block.size = req.Size
	}

	block.status = BlockUsed
	block.usageCount = 1
	block.userData = userData
	m.addTotals(BlockUsed, block.size)

	return nil
}

// Retain adds a reference to a Used block
func (m *BlockMetadata) Retain(id BlockID) error {
	block, err := m.getUsedBlock(id)
	if err != nil {
		return err
	}

	block.usageCount++
	return nil
}

// Release removes a reference from a Used block. When the last reference is removed, the block
// becomes PendingRemoval and true is returned. The block's user data is kept until Reclaim so
// that the block can be resurrected.
func (m *BlockMetadata) Release(id BlockID) (bool, error) {
	block, err := m.getUsedBlock(id)
	if err != nil {
		return false, err
	}

	block.usageCount--
	if block.usageCount > 0 {
		return false, nil
	}

	m.removeTotals(BlockUsed, block.size)
	block.status = BlockPendingRemoval
	block.usageCount = 0
	m.addTotals(BlockPendingRemoval, block.size)
	m.index.insert(id, block)

	return true, nil
}

// Resurrect turns a PendingRemoval block back into a Used block with a single reference,
// without touching its user data
func (m *BlockMetadata) Resurrect(id BlockID) error {
	block, err := m.getBlock(id)
	if err != nil {
		return err
	}

	if block.status != BlockPendingRemoval {
		return errors.Errorf("block %d is %s, not PendingRemoval", id, block.status)
	}

	m.index.remove(id, block)
	m.removeTotals(BlockPendingRemoval, block.size)
	block.status = BlockUsed
	block.usageCount = 1
	m.addTotals(BlockUsed, block.size)

	return nil
}

// Reclaim turns every PendingRemoval block into Free space and merges all adjacent free space
// into single blocks. onReclaim, if provided, is called with each PendingRemoval block's id and
// user data before the user data is dropped; it must not modify the metadata. The number of
// blocks reclaimed is returned.
//
// Reclaim is cheap when no blocks are pending removal.
func (m *BlockMetadata) Reclaim(onReclaim func(id BlockID, userData any)) int {
	if m.pendingCount == 0 {
		return 0
	}

	reclaimed := 0
	for id := m.store.first; id != NoBlock; id = m.store.get(id).next {
		block := m.store.get(id)
		if block.status != BlockPendingRemoval {
			continue
		}

		if onReclaim != nil {
			onReclaim(id, block.userData)
		}

		m.removeTotals(BlockPendingRemoval, block.size)
		block.status = BlockFree
		block.userData = nil
		m.addTotals(BlockFree, block.size)
		reclaimed++
	}

	// Coalesce runs of free blocks
	for id := m.store.first; id != NoBlock; id = m.store.get(id).next {
		block := m.store.get(id)
		if block.status != BlockFree {
			continue
		}

		for block.next != NoBlock && m.store.get(block.next).status == BlockFree {
			next := m.store.get(block.next)

			m.index.remove(id, block)
			m.index.remove(block.next, next)
			m.freeCount--

			block.size += next.size
			m.store.removeAfter(id)
			m.index.insert(id, block)
		}
	}

	memutils.DebugValidate(m)

	return reclaimed
}

// VisitAllRegions will call the provided callback once for each block in the region, in
// offset order
func (m *BlockMetadata) VisitAllRegions(handleBlock func(id BlockID, region Suballocation) error) error {
	for id := m.store.first; id != NoBlock; id = m.store.get(id).next {
		block := m.store.get(id)
		err := handleBlock(id, Suballocation{
			Offset:     block.start,
			Size:       block.size,
			Status:     block.status,
			UsageCount: block.usageCount,
			UserData:   block.userData,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Validate performs internal consistency checks on the metadata. When the implementation is
// functioning correctly, it should not be possible for this method to return an error.
func (m *BlockMetadata) Validate() error {
	nextOffset := 0
	var blockCount, allocCount, freeCount, pendingCount int
	var usedSize, freeSize, pendingSize int
	prev := NoBlock

	for id := m.store.first; id != NoBlock; id = m.store.get(id).next {
		block := m.store.get(id)
		blockCount++

		if blockCount > m.store.capacity() {
			return errors.New("the block sequence contains a cycle")
		}

		if block.prev != prev {
			return errors.Errorf("block %d at offset %d has a broken reverse reference", id, block.start)
		}

		if block.size < 1 {
			return errors.Errorf("block %d at offset %d has an invalid size of %d", id, block.start, block.size)
		}

		if block.start != nextOffset {
			return errors.Errorf("block %d starts at offset %d but the previous block ends at offset %d", id, block.start, nextOffset)
		}
		nextOffset = block.start + block.size

		switch block.status {
		case BlockUsed:
			allocCount++
			usedSize += block.size

			if block.usageCount < 1 {
				return errors.Errorf("used block %d at offset %d has a usage count of %d", id, block.start, block.usageCount)
			}

			if m.index.has(id, block) {
				return errors.Errorf("used block %d at offset %d is in the free index", id, block.start)
			}
		case BlockFree, BlockPendingRemoval:
			if block.status == BlockFree {
				freeCount++
				freeSize += block.size

				if block.userData != nil {
					return errors.Errorf("free block %d at offset %d has user data", id, block.start)
				}
			} else {
				pendingCount++
				pendingSize += block.size
			}

			if block.usageCount != 0 {
				return errors.Errorf("%s block %d at offset %d has a usage count of %d", block.status, id, block.start, block.usageCount)
			}

			if !m.index.has(id, block) {
				return errors.Errorf("%s block %d at offset %d is missing from the free index", block.status, id, block.start)
			}
		default:
			return errors.Errorf("block %d at offset %d has an unknown status %d", id, block.start, block.status)
		}

		prev = id
	}

	if m.store.last != prev {
		return errors.New("the last block in the sequence does not match the store's tail")
	}

	if nextOffset != m.capacity {
		return errors.Errorf("the full size of the metadata is %d, but the blocks only added up to %d", m.capacity, nextOffset)
	}

	if blockCount != m.store.count {
		return errors.Errorf("the store holds %d blocks, but %d were found in sequence", m.store.count, blockCount)
	}

	if blockCount+m.store.available() != m.store.capacity() {
		return errors.Errorf("%d blocks and %d free records do not add up to the store capacity of %d", blockCount, m.store.available(), m.store.capacity())
	}

	if m.index.len() != freeCount+pendingCount {
		return errors.Errorf("the free index holds %d entries, but there are %d free and %d pending blocks", m.index.len(), freeCount, pendingCount)
	}

	if allocCount != m.allocCount || usedSize != m.usedSize {
		return errors.Errorf("the metadata counts %d used blocks of %d units, but the blocks added up to %d of %d units", m.allocCount, m.usedSize, allocCount, usedSize)
	}

	if freeCount != m.freeCount || freeSize != m.freeSize {
		return errors.Errorf("the metadata counts %d free blocks of %d units, but the blocks added up to %d of %d units", m.freeCount, m.freeSize, freeCount, freeSize)
	}

	if pendingCount != m.pendingCount || pendingSize != m.pendingSize {
		return errors.Errorf("the metadata counts %d pending blocks of %d units, but the blocks added up to %d of %d units", m.pendingCount, m.pendingSize, pendingCount, pendingSize)
	}

	return nil
}

// AddDetailedStatistics sums this region's allocation statistics into the statistics currently present
// in the provided memutils.DetailedStatistics object.
func (m *BlockMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.BlockCount++
	stats.TotalUnits += m.capacity

	for id := m.store.first; id != NoBlock; id = m.store.get(id).next {
		block := m.store.get(id)
		switch block.status {
		case BlockUsed:
			stats.AddAllocation(block.size)
		case BlockFree:
			stats.AddUnusedRange(block.size)
		case BlockPendingRemoval:
			stats.AddPendingRemoval(block.size)
		}
	}
}

// AddStatistics sums this region's allocation statistics into the statistics currently present in the
// provided memutils.Statistics object.
func (m *BlockMetadata) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount++
	stats.AllocationCount += m.allocCount
	stats.TotalUnits += m.capacity
	stats.AllocationUnits += m.usedSize
}

// BlockJsonData populates a json object with information about this region
func (m *BlockMetadata) BlockJsonData(json jwriter.ObjectState) {
	json.Name("TotalUnits").Int(m.capacity)
	json.Name("FreeUnits").Int(m.freeSize)
	json.Name("PendingRemovalUnits").Int(m.pendingSize)
	json.Name("Allocations").Int(m.allocCount)
	json.Name("UnusedRanges").Int(m.freeCount)
	json.Name("PendingRemovals").Int(m.pendingCount)
	json.Name("Blocks").Int(m.store.count)
	json.Name("MaxBlocks").Int(m.maxItems)
}
