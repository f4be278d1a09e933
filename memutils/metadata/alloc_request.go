package metadata

// AllocationRequest is a type returned from BlockMetadata.CreateAllocationRequest which indicates where
// the metadata intends to place a new allocation. It can be committed with BlockMetadata.Alloc as long
// as the metadata has not been modified in between.
type AllocationRequest struct {
	// Block is the candidate block. After Alloc, it names the new Used block.
	Block BlockID
	// Offset is the unit offset the allocation will start at, after padding
	Offset int
	// Size is the requested size in units
	Size int
	// Padding is the number of units split off the front of the candidate
	Padding int
	// Reused is true when the candidate is a PendingRemoval block. The consumer must forget
	// whatever the candidate's user data referred to before committing the request.
	Reused bool
}
