package metadata

// BlockID is the index of a block record within a BlockMetadata's store. It is stable for the
// lifetime of the block it names and is the value handed to consumers as a handle.
type BlockID int32

const (
	NoBlock BlockID = -1
)

// BlockStatus is the lifecycle state of a block of units
type BlockStatus uint8

const (
	// BlockFree marks a block that holds no data and can be allocated from
	BlockFree BlockStatus = iota
	// BlockUsed marks a block with at least one live handle
	BlockUsed
	// BlockPendingRemoval marks a block whose last handle was released. Its contents stay
	// valid until the next Reclaim, so it may be resurrected in place.
	BlockPendingRemoval
)

var blockStatusMapping = map[BlockStatus]string{
	BlockFree:           "Free",
	BlockUsed:           "Used",
	BlockPendingRemoval: "PendingRemoval",
}

func (s BlockStatus) String() string {
	str, ok := blockStatusMapping[s]
	if !ok {
		return "unknown BlockStatus"
	}

	return str
}

// Suballocation is a snapshot of a single block, as reported by BlockMetadata.VisitAllRegions
type Suballocation struct {
	Offset     int
	Size       int
	Status     BlockStatus
	UsageCount int
	UserData   any
}
