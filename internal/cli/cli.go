package cli

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"time"

	"panstitch/internal/config"
	"panstitch/internal/pipeline"
	"panstitch/internal/server"
	"panstitch/internal/storage"
	"panstitch/internal/tasks"
)

type pipelineClient interface {
	Submit(job pipeline.Job) error
	Subscribe() (<-chan pipeline.Result, func())
}

type serverFunc func(ctx context.Context, addr string, store *storage.Store, pipe pipelineClient, log *slog.Logger) error

func defaultServe(ctx context.Context, addr string, store *storage.Store, pipe pipelineClient, log *slog.Logger) error {
	if real, ok := pipe.(*pipeline.Pipeline); ok {
		return server.NewServer(addr, store, real, log).Start(ctx)
	}
	return fmt.Errorf("pipeline does not support server operation")
}

type watcherFactory func(paths []string, log *slog.Logger) (*tasks.Watcher, error)

// Root carries the wiring every command needs.
type Root struct {
	pipeline pipelineClient
	cfg      *config.Config
	log      *slog.Logger
	store    *storage.Store
	serve    serverFunc
	newWatch watcherFactory
	rng      *rand.Rand
}

// NewRoot builds the command root over an initialized pipeline.
func NewRoot(pl *pipeline.Pipeline, cfg *config.Config, logger *slog.Logger, store *storage.Store) *Root {
	return &Root{
		pipeline: pl,
		cfg:      cfg,
		log:      logger,
		store:    store,
		serve:    defaultServe,
		newWatch: tasks.NewWatcher,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run dispatches a command line.
func (r *Root) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		r.usage()
		return nil
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "stitch":
		return r.cmdStitch(ctx, rest)
	case "scan":
		return r.cmdScan(ctx, rest)
	case "watch":
		return r.cmdWatch(ctx, rest)
	case "serve":
		return r.cmdServe(ctx, rest)
	case "config":
		return r.cmdConfig(ctx, rest)
	case "version":
		return r.cmdVersion()
	case "help":
		if len(rest) > 0 {
			return r.showCommandHelp(rest[0])
		}
		r.usage()
		return nil
	default:
		r.usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (r *Root) cmdStitch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stitch", flag.ContinueOnError)
	output := fs.String("output", "", "output path or directory")
	pano := fs.Bool("pano", r.cfg.Stitch.Pano, "cylindrical panorama mode with focal-factor search")
	projection := fs.String("projection", r.cfg.Stitch.Projection, "output projection (auto|flat|cylindrical)")
	slopePlain := fs.Float64("slope-plain", r.cfg.Stitch.SlopePlain, "early-exit slope threshold for the factor search")
	straighten := fs.Bool("straighten", r.cfg.Stitch.Straighten, "shear the planar chain level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("stitch requires an input directory or image files")
	}

	options := map[string]any{
		"pano":        *pano,
		"projection":  *projection,
		"slope_plain": *slopePlain,
		"straighten":  *straighten,
	}
	job := pipeline.Job{
		ID:      r.newID("stitch"),
		Type:    pipeline.JobStitch,
		Output:  *output,
		Options: options,
	}
	if fs.NArg() == 1 && isDirectory(fs.Arg(0)) {
		job.InputPath = fs.Arg(0)
	} else {
		images := fs.Args()
		sort.Strings(images)
		options["images"] = images
		job.InputPath = images[0]
	}
	return r.enqueueAndWait(ctx, job)
}

func (r *Root) cmdScan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	output := fs.String("output", r.cfg.Paths.DefaultOutput, "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	input := fs.Arg(0)
	if input == "" {
		return fmt.Errorf("scan requires an input directory")
	}

	job := pipeline.Job{
		ID:        r.newID("scan"),
		Type:      pipeline.JobScan,
		InputPath: input,
		Output:    *output,
		Options:   map[string]any{"source": "cli"},
	}
	return r.enqueueAndWait(ctx, job)
}

func (r *Root) cmdWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	output := fs.String("output", r.cfg.Paths.DefaultOutput, "output directory")
	settle := fs.Duration("settle", 3*time.Second, "how long a directory must stay quiet before stitching")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("watch requires at least one directory")
	}

	w, err := r.newWatch(fs.Args(), r.log)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	if *settle > 0 {
		w.SettleDelay = *settle
	}
	w.Start()
	defer w.Stop()

	r.log.Info("watching for panorama sweeps", "dirs", fs.Args())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case dir, ok := <-w.Settled:
			if !ok {
				return nil
			}
			job := pipeline.Job{
				ID:        r.newID("stitch"),
				Type:      pipeline.JobStitch,
				InputPath: dir,
				Output:    *output,
				Options:   map[string]any{"source": "watch"},
			}
			if err := r.enqueue(ctx, job); err != nil {
				r.log.Error("failed to queue stitch for settled directory", "dir", dir, "error", err)
			}
		}
	}
}

func (r *Root) cmdServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", r.cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return r.serve(ctx, *addr, r.store, r.pipeline, r.log)
}

func (r *Root) enqueueAndWait(ctx context.Context, job pipeline.Job) error {
	resCh, unsubscribe := r.pipeline.Subscribe()
	defer unsubscribe()
	if err := r.enqueue(ctx, job); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-resCh:
			if !ok {
				return fmt.Errorf("pipeline stopped before completion")
			}
			if res.Job.ID == job.ID {
				return res.Error
			}
		}
	}
}

func (r *Root) enqueue(ctx context.Context, job pipeline.Job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.pipeline.Submit(job); err != nil {
		return err
	}

	r.log.Info("job queued", "type", job.Type, "id", job.ID, "input", job.InputPath)
	return nil
}

func (r *Root) newID(prefix string) string {
	ts := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("%s-%s-%04d", prefix, ts, r.rng.Intn(10000))
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (r *Root) usage() {
	fmt.Fprintf(os.Stdout, `Panstitch - Panorama Stitching Pipeline

Usage:
  panstitch <command> [options] [arguments]

Processing Commands:
  stitch       Stitch a sweep of overlapping images into a panorama
  scan         Analyze a directory for panorama candidates
  watch        Watch directories and stitch sweeps as they arrive

Utility Commands:
  serve        Start the HTTP control API
  config       Manage configuration settings
  version      Show version information

Examples:
  panstitch stitch --pano /photos/pano/
  panstitch stitch --output pano.jpg left.jpg middle.jpg right.jpg
  panstitch scan /photos/2026/
  panstitch watch --settle 5s /incoming/
  panstitch serve --addr :8420

For detailed help on any command:
  panstitch help <command>
`)
}

func (r *Root) showCommandHelp(cmd string) error {
	switch cmd {
	case "stitch":
		fmt.Fprintf(os.Stdout, "Usage: panstitch stitch <input_dir|images...> [options]\nStitch overlapping images into one panorama.\nOptions:\n  --pano               Cylindrical panorama mode with focal-factor search (default: %t)\n  --projection TYPE    Output projection (auto|flat|cylindrical) (default: %s)\n  --slope-plain N      Early-exit slope threshold for the factor search (default: %g)\n  --straighten         Shear the planar chain level\n  --output PATH        Output path or directory\nExamples:\n  panstitch stitch /photos/pano/\n  panstitch stitch --projection flat --output out.png a.jpg b.jpg c.jpg\n", r.cfg.Stitch.Pano, r.cfg.Stitch.Projection, r.cfg.Stitch.SlopePlain)
	case "scan":
		fmt.Fprintf(os.Stdout, "Usage: panstitch scan <input_dir> [options]\nScan a directory for images and detect panorama candidates.\nOptions:\n  --output DIR     Output directory (default: %s)\n", r.cfg.Paths.DefaultOutput)
	case "watch":
		fmt.Fprintf(os.Stdout, "Usage: panstitch watch <dirs...> [options]\nWatch directories and queue a stitch when a sweep finishes arriving.\nOptions:\n  --settle DURATION  Quiet period before a directory is stitched (default: 3s)\n  --output DIR       Output directory (default: %s)\n", r.cfg.Paths.DefaultOutput)
	case "serve":
		fmt.Fprintf(os.Stdout, "Usage: panstitch serve [options]\nStart the HTTP control API with job submission and a websocket result stream.\nOptions:\n  --addr ADDR      Listen address (default: %s)\n", r.cfg.Server.Addr)
	case "config":
		fmt.Fprintf(os.Stdout, "Usage: panstitch config <subcommand>\nSubcommands:\n  show             Display current configuration\n  reset            Write the default configuration to disk\n")
	default:
		r.usage()
	}
	return nil
}
