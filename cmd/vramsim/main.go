package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fulldump/goconfig"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/vkngwrapper/ppu/internal/sim"
	"github.com/vkngwrapper/ppu/vram"
	"golang.org/x/exp/slog"
)

func newLogger(c Config) *slog.Logger {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}

	options := slog.HandlerOptions{Level: level}
	if c.JsonLog {
		return slog.New(options.NewJSONHandler(os.Stderr))
	}
	return slog.New(options.NewTextHandler(os.Stderr))
}

func main() {
	c := Default()
	goconfig.Read(&c)

	if c.ShowConfig {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "    ")
		e.Encode(c)
	}

	logger := newLogger(c)
	if err := run(logger, c, os.Stdout); err != nil {
		logger.LogAttrs(context.Background(), slog.LevelError, "vramsim failed", slog.String("error", fmt.Sprintf("%+v", err)))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, c Config, out io.Writer) error {
	simulation, err := sim.New(logger, c.Workload())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(vram.NewCollector(simulation.Background, simulation.Sprites))

	report, err := simulation.Run()
	if err != nil {
		return err
	}

	if c.Drain {
		if err := simulation.Finish(); err != nil {
			return err
		}
		report = simulation.Report()
	}

	fmt.Fprintf(out, "frames: %d, sprites shown: %d, sprites dropped: %d\n",
		report.Frames, report.SpritesShown, report.SpritesDropped)

	if c.ShowDump {
		fmt.Fprintln(out, simulation.Background.BuildStatsString())
		fmt.Fprintln(out, simulation.Sprites.BuildStatsString())
	}

	if c.ShowMetrics {
		families, err := registry.Gather()
		if err != nil {
			return err
		}
		if err := writeMetrics(out, families); err != nil {
			return err
		}
	}

	return nil
}

func writeMetrics(out io.Writer, families []*dto.MetricFamily) error {
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(out, family); err != nil {
			return err
		}
	}
	return nil
}
