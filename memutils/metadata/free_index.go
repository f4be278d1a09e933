package metadata

import (
	"math"

	"github.com/google/btree"
)

type freeEntry struct {
	size  int
	start int
	id    BlockID
}

// freeIndex orders every Free and PendingRemoval block by size, then start, so that the
// smallest block of at least N units can be found without walking the block sequence.
type freeIndex struct {
	tree *btree.BTreeG[freeEntry]
}

func newFreeIndex() freeIndex {
	return freeIndex{
		tree: btree.NewG(8, func(a, b freeEntry) bool {
			if a.size != b.size {
				return a.size < b.size
			}
			return a.start < b.start
		}),
	}
}

func (i *freeIndex) insert(id BlockID, record *blockRecord) {
	i.tree.ReplaceOrInsert(freeEntry{size: record.size, start: record.start, id: id})
}

func (i *freeIndex) remove(id BlockID, record *blockRecord) bool {
	_, found := i.tree.Delete(freeEntry{size: record.size, start: record.start, id: id})
	return found
}

func (i *freeIndex) has(id BlockID, record *blockRecord) bool {
	entry, found := i.tree.Get(freeEntry{size: record.size, start: record.start})
	return found && entry.id == id
}

func (i *freeIndex) len() int {
	return i.tree.Len()
}

func (i *freeIndex) clear() {
	i.tree.Clear(false)
}

// ascendFrom visits entries of at least size units from smallest to largest until visit
// returns false.
func (i *freeIndex) ascendFrom(size int, visit func(entry freeEntry) bool) {
	i.tree.AscendGreaterOrEqual(freeEntry{size: size, start: math.MinInt}, visit)
}
