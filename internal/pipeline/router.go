package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"panstitch/internal/config"
	"panstitch/internal/storage"
	"panstitch/internal/tasks"
)

type stitchFunc func(context.Context, *config.Config, tasks.StitchRequest) (tasks.StitchResult, error)
type scanFunc func(string) (tasks.ScanResult, error)

// router implements Processor and routes jobs to their concrete
// handlers. The task functions are fields so tests can stub them out.
type router struct {
	log      *slog.Logger
	store    *storage.Store
	cfg      *config.Config
	stitchFn stitchFunc
	scanFn   scanFunc
}

func newRouter(logger *slog.Logger, store *storage.Store, cfg *config.Config) Processor {
	return &router{
		log:      logger,
		store:    store,
		cfg:      cfg,
		stitchFn: tasks.Stitch,
		scanFn:   tasks.Scan,
	}
}

func (r *router) Process(ctx context.Context, job Job) Result {
	switch job.Type {
	case JobStitch:
		return r.handleStitch(ctx, job)
	case JobScan:
		return r.handleScan(ctx, job)
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown job type %q", job.Type)}
	}
}

func (r *router) handleStitch(ctx context.Context, job Job) Result {
	req := tasks.StitchRequest{
		InputDir: job.InputPath,
		Output:   job.Output,
	}
	if imgs := stringSlice(job.Options["images"]); len(imgs) > 0 {
		req.Images = imgs
	}
	if v, ok := job.Options["pano"].(bool); ok {
		req.Pano = &v
	}
	if v, ok := job.Options["projection"].(string); ok {
		req.Projection = v
	}
	if v, ok := job.Options["slope_plain"].(float64); ok {
		req.SlopePlain = v
	}
	if v, ok := job.Options["straighten"].(bool); ok {
		req.Straighten = v
	}

	res, err := r.stitchFn(ctx, r.cfg, req)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	if r.store != nil {
		recs := make([]storage.TransformRecord, 0, len(res.Transforms))
		for _, t := range res.Transforms {
			recs = append(recs, storage.TransformRecord{
				JobID:        job.ID,
				ImageIndex:   t.Index,
				ImagePath:    t.ImagePath,
				Homography:   t.Homography,
				Projection:   res.Projection,
				CanvasWidth:  res.CanvasWidth,
				CanvasHeight: res.CanvasHeight,
			})
		}
		if err := r.store.RecordTransforms(recs); err != nil {
			r.log.Warn("failed to persist transforms", "job", job.ID, "error", err)
		}
	}

	return Result{Job: job, Meta: map[string]any{
		"output":        res.OutputFile,
		"images":        res.ImageCount,
		"canvas_width":  res.CanvasWidth,
		"canvas_height": res.CanvasHeight,
		"projection":    res.Projection,
		"hfactor":       res.HFactor,
		"identity_idx":  res.IdentityIndex,
		"duration_ms":   res.ProcessingTime.Milliseconds(),
	}}
}

func (r *router) handleScan(ctx context.Context, job Job) Result {
	if err := ctx.Err(); err != nil {
		return Result{Job: job, Error: err}
	}
	res, err := r.scanFn(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	groups := make([]map[string]any, 0, len(res.Groups))
	for _, g := range res.Groups {
		groups = append(groups, map[string]any{
			"type":      g.GroupType,
			"base_path": g.BasePath,
			"count":     g.Count,
			"detection": g.Detection,
		})
	}
	return Result{Job: job, Meta: map[string]any{
		"images": len(res.Images),
		"groups": groups,
	}}
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
