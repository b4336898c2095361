// Command tractinfo decodes tractography files and reports what they contain
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/michielkleinnijenhuis/tractio"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tractinfo [flags] <file|dir|url>...",
		Short: "Decode tractography files and report their streamlines",
		Long: "tractinfo decodes Camino (.Bfloat .bfloat .Bdouble .bdouble), VTK (.vtk), MRtrix (.tck),\n" +
			"NumPy (.npy .npz) and TrackVis (.trk) files and prints a per-file report.\n" +
			"Directories are expanded to the supported files they contain.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	flags := cmd.Flags()
	flags.String("config", "", "TOML config file (flags override its settings)")
	flags.String("format", "yaml", "report format: yaml, json or toml")
	flags.Int("workers", 1, "number of files decoded concurrently")
	flags.Float64("weed", 0, "fraction of streamlines randomly kept (0 keeps all)")
	flags.Float64("subsample", 0, "keep every int(1/subsample)-th point (0 keeps all)")
	flags.String("affine", "", "4x4 affine applied to every point (.npy or text file)")
	flags.Uint64("seed", 0, "random seed for weeding (0 is non-deterministic)")
	flags.Bool("tck-require-count", false, "treat a .tck header count mismatch as an error")
	flags.BoolP("verbose", "v", false, "log info messages")
	flags.Bool("vv", false, "log debug messages")
	flags.BoolP("quiet", "q", false, "only log errors")
	return cmd
}

func run(cmd *cobra.Command, args []string, stdout, stderr io.Writer) error {
	flags := cmd.Flags()
	configFile, _ := flags.GetString("config")
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	if err = cfg.applyFlags(flags); err != nil {
		return err
	}
	v, _ := flags.GetBool("verbose")
	vv, _ := flags.GetBool("vv")
	q, _ := flags.GetBool("quiet")
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: LevelFromFlags(vv, v, q)}))

	opts := &tractio.BatchOptions{
		Decode: &tractio.DecodeOptions{
			Logger:          logger,
			TckRequireCount: cfg.TckRequireCount,
		},
		Workers:   cfg.Workers,
		Weed:      cfg.Weed,
		Subsample: cfg.Subsample,
		Seed:      cfg.Seed,
	}
	if cfg.Affine != "" {
		a, err := tractio.ReadAffineFile(cfg.Affine)
		if err != nil {
			return fmt.Errorf("affine %s: %w", cfg.Affine, err)
		}
		opts.Affine = &a
	}

	ctx := cmd.Context()
	locations, err := expandArgs(ctx, args, opts.Decode)
	if err != nil {
		return err
	}
	results := tractio.DecodeBatch(ctx, locations, opts)
	if err = newReport(results).Write(stdout, cfg.Format); err != nil {
		return err
	}
	if failed := tractio.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d files failed to decode", len(failed), len(results))
	}
	return nil
}

// expandArgs replaces directory arguments with the supported files they contain
func expandArgs(ctx context.Context, args []string, options *tractio.DecodeOptions) ([]string, error) {
	locations := make([]string, 0, len(args))
	for _, arg := range args {
		if isDir(arg) {
			files, err := tractio.ListDir(ctx, arg, options)
			if err != nil {
				return nil, err
			}
			locations = append(locations, files...)
			continue
		}
		locations = append(locations, arg)
	}
	return locations, nil
}

func isDir(arg string) bool {
	if strings.Contains(arg, "://") {
		return strings.HasSuffix(arg, "/")
	}
	info, err := os.Stat(arg)
	return err == nil && info.IsDir()
}
