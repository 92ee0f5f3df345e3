package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

const longRootDescription = `animgraph runs an animated value graph: value nodes driven by animations
feed derived nodes, and props nodes commit the results to views once per frame.
`

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "animgraph",
		Short:         "Animated node graph engine with a command API",
		Long:          longRootDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newValidateCmd())
	return root
}

// newLogger builds a slog logger whose level follows level.
func newLogger(w io.Writer, format string, level *slog.LevelVar) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
}

// setLevel applies a level name such as "debug" or "WARN"; empty means info.
func setLevel(level *slog.LevelVar, name string) error {
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	return nil
}
