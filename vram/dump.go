package vram

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/ppu/memutils"
	"github.com/vkngwrapper/ppu/memutils/commit"
	"github.com/vkngwrapper/ppu/memutils/metadata"
)

// Stats is a snapshot of a region's occupancy along with running totals of the work it has
// done since it was created
type Stats struct {
	Region    string
	UnitBytes int
	Blocks    memutils.DetailedStatistics

	FreeUnits    int
	PendingUnits int
	UsedUnits    int
	DirtyBlocks  int

	Created        int
	Deduplicated   int
	Resurrected    int
	Failed         int
	ForcedReclaims int
	Reclaimed      int
	Commit         commit.PassStats
}

// Stats returns a snapshot of the region's statistics
func (r *region) Stats() Stats {
	stats := Stats{
		Region:         r.name,
		UnitBytes:      r.unitBytes,
		FreeUnits:      r.meta.SumFreeSize(),
		PendingUnits:   r.meta.SumPendingSize(),
		UsedUnits:      r.meta.SumUsedSize(),
		DirtyBlocks:    r.dirtyCount,
		Created:        r.counters.created,
		Deduplicated:   r.counters.deduplicated,
		Resurrected:    r.counters.resurrected,
		Failed:         r.counters.failed,
		ForcedReclaims: r.counters.forcedReclaims,
		Reclaimed:      r.counters.reclaimed,
		Commit:         r.counters.commit,
	}

	stats.Blocks.Clear()
	r.meta.AddDetailedStatistics(&stats.Blocks)

	return stats
}

// BuildStatsString returns a JSON document describing every block in the region
func (r *region) BuildStatsString() string {
	writer := jwriter.NewWriter()
	r.PrintDetailedMap(&writer)
	return string(writer.Bytes())
}

// PrintDetailedMap writes a JSON object describing every block in the region to writer
func (r *region) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	objState.Name("Region").String(r.name)
	objState.Name("UnitBytes").Int(r.unitBytes)
	objState.Name("DelayCommit").Bool(r.delayCommit)
	objState.Name("DirtyBlocks").Int(r.dirtyCount)

	summary := objState.Name("Summary").Object()
	r.meta.BlockJsonData(summary)
	summary.End()

	plain, compressed := r.scheduler.Pending()
	queues := objState.Name("Queues").Object()
	queues.Name("Plain").Int(plain)
	queues.Name("Compressed").Int(compressed)
	queues.End()

	r.printBlocks(objState)
}

func (r *region) printBlocks(json jwriter.ObjectState) {
	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	_ = r.meta.VisitAllRegions(func(id metadata.BlockID, block metadata.Suballocation) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Handle").Int(int(id))
		obj.Name("Offset").Int(block.Offset)
		obj.Name("Size").Int(block.Size)
		obj.Name("Status").String(block.Status.String())

		if block.Status == metadata.BlockFree {
			return nil
		}

		obj.Name("Usage").Int(block.UsageCount)

		info, ok := block.UserData.(*blockInfo)
		if !ok || info == nil {
			return nil
		}

		obj.Name("Kind").String(info.identity.Kind.String())
		obj.Name("Encoding").String(info.identity.Encoding.String())
		obj.Name("Raw").Bool(info.raw)
		obj.Name("Dirty").Bool(info.dirty)

		if info.identity.Kind == KindMap {
			obj.Name("Tiles").Int(int(info.binding.Tiles))
			obj.Name("PaletteBank").Int(info.binding.PaletteBank)
			obj.Name("CellOffset").Int(int(info.cellOffset))
		}

		return nil
	})
}
