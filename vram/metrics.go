package vram

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is implemented by BackgroundBlocks and SpriteTiles
type StatsSource interface {
	Stats() Stats
}

var (
	unitsDesc = prometheus.NewDesc(
		"ppu_vram_units",
		"Units of display memory by block state.",
		[]string{"region", "state"}, nil,
	)
	blocksDesc = prometheus.NewDesc(
		"ppu_vram_blocks",
		"Number of blocks the region is split into.",
		[]string{"region"}, nil,
	)
	dirtyDesc = prometheus.NewDesc(
		"ppu_vram_dirty_blocks",
		"Number of blocks waiting to be committed.",
		[]string{"region"}, nil,
	)
	requestsDesc = prometheus.NewDesc(
		"ppu_vram_requests_total",
		"Create and allocate requests by outcome.",
		[]string{"region", "result"}, nil,
	)
	forcedReclaimsDesc = prometheus.NewDesc(
		"ppu_vram_forced_reclaims_total",
		"Reclaim passes forced by an allocation that did not fit.",
		[]string{"region"}, nil,
	)
	reclaimedDesc = prometheus.NewDesc(
		"ppu_vram_reclaimed_blocks_total",
		"Blocks turned from pending removal into free space.",
		[]string{"region"}, nil,
	)
	commitBytesDesc = prometheus.NewDesc(
		"ppu_vram_commit_bytes_total",
		"Bytes of display memory written by uploads.",
		[]string{"region"}, nil,
	)
	commitJobsDesc = prometheus.NewDesc(
		"ppu_vram_commit_jobs_total",
		"Block uploads by transfer path.",
		[]string{"region", "path"}, nil,
	)
)

// Collector exports the statistics of one or more regions as prometheus metrics
type Collector struct {
	sources []StatsSource
}

var _ prometheus.Collector = &Collector{}

// NewCollector creates a Collector reporting on the provided regions
func NewCollector(sources ...StatsSource) *Collector {
	return &Collector{sources: sources}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- unitsDesc
	ch <- blocksDesc
	ch <- dirtyDesc
	ch <- requestsDesc
	ch <- forcedReclaimsDesc
	ch <- reclaimedDesc
	ch <- commitBytesDesc
	ch <- commitJobsDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, source := range c.sources {
		stats := source.Stats()
		region := stats.Region

		gauge := func(desc *prometheus.Desc, value int, labels ...string) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(value), append([]string{region}, labels...)...)
		}
		counter := func(desc *prometheus.Desc, value int, labels ...string) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value), append([]string{region}, labels...)...)
		}

		gauge(unitsDesc, stats.FreeUnits, "free")
		gauge(unitsDesc, stats.PendingUnits, "pending")
		gauge(unitsDesc, stats.UsedUnits, "used")
		gauge(blocksDesc, stats.Blocks.AllocationCount+stats.Blocks.UnusedRangeCount+stats.Blocks.PendingRemovalCount)
		gauge(dirtyDesc, stats.DirtyBlocks)

		counter(requestsDesc, stats.Created, "created")
		counter(requestsDesc, stats.Deduplicated, "deduplicated")
		counter(requestsDesc, stats.Resurrected, "resurrected")
		counter(requestsDesc, stats.Failed, "failed")
		counter(forcedReclaimsDesc, stats.ForcedReclaims)
		counter(reclaimedDesc, stats.Reclaimed)
		counter(commitBytesDesc, stats.Commit.BytesWritten)
		counter(commitJobsDesc, stats.Commit.DMATransfers, "dma")
		counter(commitJobsDesc, stats.Commit.CPUCopies, "cpu")
		counter(commitJobsDesc, stats.Commit.BlocksDecoded, "decode")
		counter(commitJobsDesc, stats.Commit.JobsSkipped, "skipped")
	}
}
