package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestRun(t *testing.T) {
	c := Default()
	c.Frames = 20
	c.Drain = true

	var out bytes.Buffer
	err := run(slog.New(slog.NewTextHandler(io.Discard)), c, &out)
	require.NoError(t, err)

	text := out.String()
	require.True(t, strings.HasPrefix(text, "frames: 20,"), text)
	require.Contains(t, text, `"Region":"Background"`)
	require.Contains(t, text, `"Region":"Sprite"`)
	require.Contains(t, text, "# HELP ppu_vram_units Units of display memory by block state.\n# TYPE ppu_vram_units gauge\n")
	require.Contains(t, text, "# TYPE ppu_vram_requests_total counter\n")
	require.Contains(t, text, `ppu_vram_units{region="Background",state="used"} 0`+"\n")
	require.Contains(t, text, `ppu_vram_requests_total{region="Sprite",result="created"}`)
}

func TestRunRejectsBadWorkload(t *testing.T) {
	c := Default()
	c.SceneFrames = 0

	err := run(slog.New(slog.NewTextHandler(io.Discard)), c, io.Discard)
	require.Error(t, err)
}
