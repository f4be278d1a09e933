package sim

import (
	"context"
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/ppu/memutils/commit"
	"github.com/vkngwrapper/ppu/vram"
	"golang.org/x/exp/slog"
)

// Config describes a workload. The zero value is not useful, start from Default.
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
}

// Default returns the workload run by vramsim with no flags
func Default() Config {
	return Config{
		Frames:      120,
		SceneFrames: 30,
		Scenes:      4,
		Sprites:     48,
		Spawns:      6,
		Lifetime:    8,
		Seed:        1,
		UseDMA:      true,
	}
}

func (c Config) validate() error {
	if c.Frames < 0 {
		return errors.Newf("frames must not be negative, got %d", c.Frames)
	}
	if c.SceneFrames < 1 {
		return errors.Newf("scene frames must be at least 1, got %d", c.SceneFrames)
	}
	if c.Scenes < 1 {
		return errors.Newf("scenes must be at least 1, got %d", c.Scenes)
	}
	if c.Sprites < 1 {
		return errors.Newf("sprites must be at least 1, got %d", c.Sprites)
	}
	if c.Spawns < 0 || c.Lifetime < 1 {
		return errors.Newf("spawns must not be negative and lifetime must be at least 1, got %d and %d", c.Spawns, c.Lifetime)
	}
	return nil
}

type asset struct {
	source   []byte
	encoding commit.Encoding
	bpp      int
	tiles    int
}

type scene struct {
	tiles asset
	cells []byte
}

type instance struct {
	ref     vram.Ref
	expires int
}

// Report summarizes a finished run
type Report struct {
	Frames         int
	SpritesShown   int
	SpritesDropped int
	Background     vram.Stats
	Sprites        vram.Stats
}

// Simulation drives a background and a sprite manager through a game-like frame loop:
// background scenes that swap every few frames and sprite instances with short lifetimes
// that come and go every frame
type Simulation struct {
	logger *slog.Logger
	config Config
	random *rand.Rand

	Background *vram.BackgroundBlocks
	Sprites    *vram.SpriteTiles

	scenes       []scene
	spriteAssets []asset

	sceneIndex int
	sceneTiles vram.Ref
	sceneMap   vram.Ref
	instances  []instance

	frame   int
	shown   int
	dropped int
}

// New builds the managers and the workload's source data
func New(logger *slog.Logger, config Config) (*Simulation, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	var flags vram.CreateFlags
	if config.Validate {
		flags |= vram.CreateValidate
	}
	if config.Defer {
		flags |= vram.CreateDeferUploads
	}

	s := &Simulation{
		logger: logger,
		config: config,
		random: rand.New(rand.NewSource(config.Seed)),
		Background: vram.NewBackgroundBlocks(logger, vram.BackgroundOptions{
			Flags:   flags,
			Decoder: Decoder,
		}),
		Sprites: vram.NewSpriteTiles(logger, vram.SpriteOptions{
			Flags:   flags,
			Decoder: Decoder,
		}),
		sceneIndex: -1,
	}

	for i := 0; i < config.Scenes; i++ {
		s.scenes = append(s.scenes, s.newScene(i))
	}

	for i := 0; i < config.Sprites; i++ {
		s.spriteAssets = append(s.spriteAssets, s.newSpriteAsset(i))
	}

	return s, nil
}

// pattern produces tile data with enough repetition to compress
func (s *Simulation) pattern(size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; {
		run := 1 + s.random.Intn(12)
		value := byte(s.random.Intn(16))
		for j := 0; j < run && i < size; j++ {
			data[i] = value
			i++
		}
	}
	return data
}

func (s *Simulation) newAsset(bpp int, tiles int, compressed bool) asset {
	data := s.pattern(tiles * bpp * 8)
	if !compressed {
		return asset{source: data, encoding: commit.EncodingNone, bpp: bpp, tiles: tiles}
	}
	return asset{source: EncodeRunLength(data), encoding: commit.EncodingRunLength, bpp: bpp, tiles: tiles}
}

func (s *Simulation) newScene(index int) scene {
	tiles := 64 * (1 + s.random.Intn(4))
	cells := make([]byte, 32*32*2)
	for i := 0; i < len(cells); i += 2 {
		cells[i] = byte(s.random.Intn(tiles))
	}

	return scene{
		tiles: s.newAsset(4, tiles, index%2 == 1),
		cells: cells,
	}
}

func (s *Simulation) newSpriteAsset(index int) asset {
	bpp := 4
	if index%4 == 3 {
		bpp = 8
	}
	return s.newAsset(bpp, 1<<s.random.Intn(6), index%3 == 2)
}

// Step runs one frame: scene management, sprite churn and the blanking update of both
// managers
func (s *Simulation) Step() error {
	if err := s.stepBackground(); err != nil {
		return err
	}

	s.stepSprites()

	if err := s.Background.Update(s.config.UseDMA); err != nil {
		return errors.Wrapf(err, "frame %d", s.frame)
	}
	if err := s.Sprites.Update(s.config.UseDMA); err != nil {
		return errors.Wrapf(err, "frame %d", s.frame)
	}

	s.frame++
	return nil
}

func (s *Simulation) stepBackground() error {
	index := (s.frame / s.config.SceneFrames) % len(s.scenes)
	if index == s.sceneIndex {
		// Cycle the palette bank a few times per scene
		if s.frame%8 == 0 {
			handle := s.sceneMap.Handle()
			s.Background.SetMapPalette(handle, (s.Background.MapPalette(handle)+1)%4)
		}
		return nil
	}

	current := s.scenes[index]

	// Create the new scene before releasing the old one so shared data is deduplicated
	// rather than reloaded
	tiles, err := s.Background.CreateTilesOptional(current.tiles.source, current.tiles.encoding, current.tiles.bpp, current.tiles.tiles)
	if err != nil {
		return errors.Wrapf(err, "frame %d: scene %d tiles", s.frame, index)
	}
	tilesRef := vram.NewRef(s.Background, tiles)

	tileMap, err := s.Background.CreateMapOptional(current.cells, commit.EncodingNone, 32, 32, vram.MapBinding{Tiles: tiles})
	if err != nil {
		tilesRef.Release()
		return errors.Wrapf(err, "frame %d: scene %d map", s.frame, index)
	}

	s.sceneTiles.Release()
	s.sceneMap.Release()
	s.sceneTiles = tilesRef
	s.sceneMap = vram.NewRef(s.Background, tileMap)
	s.sceneIndex = index

	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "Scene changed",
		slog.Int("frame", s.frame),
		slog.Int("scene", index),
		slog.Int("tiles", int(tiles)),
		slog.Int("map", int(tileMap)),
	)
	return nil
}

func (s *Simulation) stepSprites() {
	live := s.instances[:0]
	for _, inst := range s.instances {
		if inst.expires <= s.frame {
			inst.ref.Release()
			continue
		}
		live = append(live, inst)
	}
	s.instances = live

	spawns := s.random.Intn(s.config.Spawns + 1)
	for i := 0; i < spawns; i++ {
		sprite := s.spriteAssets[s.random.Intn(len(s.spriteAssets))]

		handle, err := s.Sprites.CreateTilesOptional(sprite.source, sprite.encoding, sprite.bpp, sprite.tiles)
		if err != nil {
			s.dropped++
			s.logger.LogAttrs(context.Background(), slog.LevelDebug, "Sprite dropped",
				slog.Int("frame", s.frame),
				slog.Int("tiles", sprite.tiles),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.shown++
		s.instances = append(s.instances, instance{
			ref:     vram.NewRef(s.Sprites, handle),
			expires: s.frame + 1 + s.random.Intn(s.config.Lifetime),
		})
	}
}

// Finish releases everything the workload still holds and runs a last update so that both
// regions end up empty
func (s *Simulation) Finish() error {
	for i := range s.instances {
		s.instances[i].ref.Release()
	}
	s.instances = nil

	s.sceneMap.Release()
	s.sceneTiles.Release()
	s.sceneIndex = -1

	if err := s.Background.Update(s.config.UseDMA); err != nil {
		return err
	}
	// Map blocks give up their tiles when they are reclaimed, so the tiles need a second pass
	s.Background.Reclaim()

	return s.Sprites.Update(s.config.UseDMA)
}

// Report returns the run's totals so far
func (s *Simulation) Report() Report {
	return Report{
		Frames:         s.frame,
		SpritesShown:   s.shown,
		SpritesDropped: s.dropped,
		Background:     s.Background.Stats(),
		Sprites:        s.Sprites.Stats(),
	}
}

// Run steps through every configured frame
func (s *Simulation) Run() (Report, error) {
	for s.frame < s.config.Frames {
		if err := s.Step(); err != nil {
			return s.Report(), err
		}
	}

	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "Simulation finished",
		slog.Int("frames", s.frame),
		slog.Int("spritesShown", s.shown),
		slog.Int("spritesDropped", s.dropped),
	)
	return s.Report(), nil
}
