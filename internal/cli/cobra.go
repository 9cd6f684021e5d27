package cli

import (
	"context"
	"log/slog"
	"sort"

	"panstitch/internal/config"
	"panstitch/internal/pipeline"
	"panstitch/internal/storage"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root Cobra command
func NewRootCmd(cfg *config.Config, log *slog.Logger, store *storage.Store, pipe *pipeline.Pipeline) *cobra.Command {
	root := NewRoot(pipe, cfg, log, store)

	rootCmd := &cobra.Command{
		Use:   "panstitch",
		Short: "Panstitch assembles overlapping photos into panoramas",
		Long: `Panstitch aligns an ordered sweep of overlapping images, recovers the
cylindrical focal factor when needed, and renders a blended panorama.`,
	}

	rootCmd.AddCommand(newStitchCmd(root))
	rootCmd.AddCommand(newScanCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func newStitchCmd(root *Root) *cobra.Command {
	var (
		output     string
		pano       bool
		projection string
		slopePlain float64
		straighten bool
	)

	cmd := &cobra.Command{
		Use:   "stitch <input_directory|images...> [flags]",
		Short: "Stitch overlapping images into a panorama",
		Long: `Stitch a sweep of overlapping photos into one panorama. With --pano the
inputs are treated as a rotational sweep: the cylindrical focal factor is
searched, all images are warped onto the cylinder and chained. Without it a
planar chain over consecutive pairs is used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options := map[string]any{
				"pano":        pano,
				"projection":  projection,
				"slope_plain": slopePlain,
				"straighten":  straighten,
				"source":      "cli",
			}
			job := pipeline.Job{
				ID:      root.newID("stitch"),
				Type:    pipeline.JobStitch,
				Output:  output,
				Options: options,
			}
			if len(args) == 1 && isDirectory(args[0]) {
				job.InputPath = args[0]
			} else {
				images := append([]string(nil), args...)
				sort.Strings(images)
				options["images"] = images
				job.InputPath = images[0]
			}
			return root.enqueueAndWait(context.Background(), job)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path or directory")
	cmd.Flags().BoolVar(&pano, "pano", root.cfg.Stitch.Pano, "cylindrical panorama mode with focal-factor search")
	cmd.Flags().StringVarP(&projection, "projection", "p", root.cfg.Stitch.Projection, "output projection (auto|flat|cylindrical)")
	cmd.Flags().Float64Var(&slopePlain, "slope-plain", root.cfg.Stitch.SlopePlain, "early-exit slope threshold for the factor search")
	cmd.Flags().BoolVar(&straighten, "straighten", root.cfg.Stitch.Straighten, "shear the planar chain level")

	return cmd
}

func newScanCmd(root *Root) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "scan <input_directory>",
		Short: "Scan a directory for panorama candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.cmdScan(context.Background(), []string{"--output", output, args[0]})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", root.cfg.Paths.DefaultOutput, "output directory")
	return cmd
}

func newWatchCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <directories...>",
		Short: "Watch directories and stitch sweeps as they arrive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.cmdWatch(cmd.Context(), args)
		},
	}
	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.serve(cmd.Context(), addr, root.store, root.pipeline, root.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", root.cfg.Server.Addr, "listen address")
	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [show|reset]",
		Short: "Manage configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.cmdConfig(context.Background(), args)
		},
	}
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.cmdVersion()
		},
	}
}
