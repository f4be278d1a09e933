package main

import "github.com/vkngwrapper/ppu/internal/sim"

type Config struct {
	Frames      int   `usage:"number of frames to simulate"`
	SceneFrames int   `usage:"frames between background scene changes"`
	Scenes      int   `usage:"number of distinct background scenes"`
	Sprites     int   `usage:"number of distinct sprite tile sets"`
	Spawns      int   `usage:"maximum sprite instances spawned per frame"`
	Lifetime    int   `usage:"maximum number of frames a sprite instance lives"`
	Seed        int64 `usage:"seed for the workload's random choices"`
	UseDMA      bool  `usage:"commit plain blocks with DMA transfers"`
	Defer       bool  `usage:"defer every upload to the frame commit"`
	Validate    bool  `usage:"validate both regions after every operation"`

	Verbose     bool `usage:"log every allocation, reclaim and scene change"`
	JsonLog     bool `usage:"write logs as JSON"`
	ShowConfig  bool `usage:"print the configuration before running"`
	ShowDump    bool `usage:"print the block dump of both regions after the last frame"`
	ShowMetrics bool `usage:"print the region metrics after the last frame"`
	Drain       bool `usage:"release everything and run a final update before reporting"`
}

func Default() Config {
	workload := sim.Default()
	return Config{
		Frames:      workload.Frames,
		SceneFrames: workload.SceneFrames,
		Scenes:      workload.Scenes,
		Sprites:     workload.Sprites,
		Spawns:      workload.Spawns,
		Lifetime:    workload.Lifetime,
		Seed:        workload.Seed,
		UseDMA:      workload.UseDMA,
		Defer:       workload.Defer,
		Validate:    workload.Validate,
		ShowDump:    true,
		ShowMetrics: true,
	}
}

func (c Config) Workload() sim.Config {
	return sim.Config{
		Frames:      c.Frames,
		SceneFrames: c.SceneFrames,
		Scenes:      c.Scenes,
		Sprites:     c.Sprites,
		Spawns:      c.Spawns,
		Lifetime:    c.Lifetime,
		Seed:        c.Seed,
		UseDMA:      c.UseDMA,
		Defer:       c.Defer,
		Validate:    c.Validate,
	}
}
