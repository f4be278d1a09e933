package sim_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/ppu/internal/sim"
)

func TestSimulationRun(t *testing.T) {
	config := sim.Default()
	config.Frames = 90
	config.Validate = true

	simulation, err := sim.New(nil, config)
	require.NoError(t, err)

	report, err := simulation.Run()
	require.NoError(t, err)
	require.Equal(t, 90, report.Frames)
	require.Greater(t, report.SpritesShown, 0)

	// Three scenes of one tiles block and one map each
	require.Equal(t, 6, report.Background.Created)
	require.Greater(t, report.Sprites.Deduplicated+report.Sprites.Resurrected, 0)
	require.Equal(t, 0, report.Background.Failed)
	require.Equal(t, 0, report.Background.DirtyBlocks)
	require.Equal(t, 0, report.Sprites.DirtyBlocks)

	require.NoError(t, simulation.Finish())
	require.NoError(t, simulation.Background.Validate())
	require.NoError(t, simulation.Sprites.Validate())

	final := simulation.Report()
	require.Equal(t, 0, final.Background.UsedUnits)
	require.Equal(t, 0, final.Background.PendingUnits)
	require.Equal(t, 0, final.Sprites.UsedUnits)
	require.Equal(t, 0, final.Sprites.PendingUnits)
}

func TestSimulationIsDeterministic(t *testing.T) {
	config := sim.Default()
	config.Frames = 40
	config.Defer = true

	first, err := sim.New(nil, config)
	require.NoError(t, err)
	firstReport, err := first.Run()
	require.NoError(t, err)

	second, err := sim.New(nil, config)
	require.NoError(t, err)
	secondReport, err := second.Run()
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(firstReport, secondReport))
}

func TestSimulationDeferredUploadsCommitEveryFrame(t *testing.T) {
	config := sim.Default()
	config.Frames = 10
	config.Defer = true
	config.UseDMA = false

	simulation, err := sim.New(nil, config)
	require.NoError(t, err)

	report, err := simulation.Run()
	require.NoError(t, err)
	require.Equal(t, 0, report.Sprites.Commit.DMATransfers)
	require.Greater(t, report.Background.Commit.BlocksDecoded+report.Background.Commit.CPUCopies, 0)
	require.Equal(t, 0, report.Background.DirtyBlocks)
}

func TestConfigValidation(t *testing.T) {
	config := sim.Default()
	config.Scenes = 0
	_, err := sim.New(nil, config)
	require.Error(t, err)

	config = sim.Default()
	config.Lifetime = 0
	_, err = sim.New(nil, config)
	require.Error(t, err)
}
