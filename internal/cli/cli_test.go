package cli

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"panstitch/internal/config"
	"panstitch/internal/pipeline"
)

func TestRunDispatchesProcessingCommands(t *testing.T) {
	root, fakePipe := newTestRoot(t)
	temp := t.TempDir()

	cases := []struct {
		name       string
		args       []string
		expectType pipeline.JobType
	}{
		{"scan", []string{"scan", temp}, pipeline.JobScan},
		{"stitch-dir", []string{"stitch", temp}, pipeline.JobStitch},
		{"stitch-files", []string{"stitch", filepath.Join(temp, "a.jpg"), filepath.Join(temp, "b.jpg")}, pipeline.JobStitch},
		{"stitch-flags", []string{"stitch", "--pano=false", "--projection", "flat", "--straighten", temp}, pipeline.JobStitch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fakePipe.reset()
			if err := root.Run(context.Background(), tc.args); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if len(fakePipe.jobs) != 1 {
				t.Fatalf("expected one job, got %d", len(fakePipe.jobs))
			}
			if fakePipe.jobs[0].Type != tc.expectType {
				t.Fatalf("expected type %s, got %s", tc.expectType, fakePipe.jobs[0].Type)
			}
		})
	}
}

func TestStitchCommandOptions(t *testing.T) {
	root, fakePipe := newTestRoot(t)
	temp := t.TempDir()

	args := []string{"stitch", "--pano=false", "--projection", "flat", "--slope-plain", "0.05", temp}
	if err := root.Run(context.Background(), args); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	job := fakePipe.jobs[0]
	if job.Options["pano"] != false {
		t.Fatalf("expected pano=false, got %v", job.Options["pano"])
	}
	if job.Options["projection"] != "flat" {
		t.Fatalf("expected projection=flat, got %v", job.Options["projection"])
	}
	if job.Options["slope_plain"] != 0.05 {
		t.Fatalf("expected slope_plain=0.05, got %v", job.Options["slope_plain"])
	}
	if job.InputPath != temp {
		t.Fatalf("expected input path %s, got %s", temp, job.InputPath)
	}
}

func TestStitchFileListIsSorted(t *testing.T) {
	root, fakePipe := newTestRoot(t)
	temp := t.TempDir()

	b := filepath.Join(temp, "b.jpg")
	a := filepath.Join(temp, "a.jpg")
	if err := root.Run(context.Background(), []string{"stitch", b, a}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	imgs, ok := fakePipe.jobs[0].Options["images"].([]string)
	if !ok || len(imgs) != 2 {
		t.Fatalf("expected two images in options, got %v", fakePipe.jobs[0].Options["images"])
	}
	if imgs[0] != a || imgs[1] != b {
		t.Fatalf("expected sorted image list, got %v", imgs)
	}
}

func TestRunValidatesArguments(t *testing.T) {
	root, _ := newTestRoot(t)
	if err := root.Run(context.Background(), []string{"scan"}); err == nil {
		t.Fatalf("expected error for missing scan input")
	}
	if err := root.Run(context.Background(), []string{"stitch"}); err == nil {
		t.Fatalf("expected error for missing stitch input")
	}
	if err := root.Run(context.Background(), []string{}); err != nil {
		t.Fatalf("expected nil for empty args showing usage, got %v", err)
	}
	if err := root.Run(context.Background(), []string{"transmogrify"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func newTestRoot(t *testing.T) (*Root, *fakePipeline) {
	t.Helper()

	cfg := config.Default()
	tmp := t.TempDir()
	cfg.Paths.DefaultOutput = filepath.Join(tmp, "output")
	cfg.Paths.DatabasePath = filepath.Join(tmp, "panstitch.db")

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pipe := newFakePipeline()

	root := &Root{
		pipeline: pipe,
		cfg:      cfg,
		log:      logger,
		store:    nil,
		serve:    defaultServe,
		rng:      rand.New(rand.NewSource(1)),
	}
	return root, pipe
}

type fakePipeline struct {
	mu        sync.Mutex
	jobs      []pipeline.Job
	subs      map[int]chan pipeline.Result
	nextSubID int
	jobErrors map[string]error
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		subs:      make(map[int]chan pipeline.Result),
		jobErrors: make(map[string]error),
	}
}

func (f *fakePipeline) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = nil
}

func (f *fakePipeline) Submit(job pipeline.Job) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	subs := make([]chan pipeline.Result, 0, len(f.subs))
	for _, ch := range f.subs {
		subs = append(subs, ch)
	}
	err := f.jobErrors[job.ID]
	f.mu.Unlock()

	go func() {
		res := pipeline.Result{Job: job, Error: err, Meta: map[string]any{"ok": true}}
		for _, ch := range subs {
			ch <- res
		}
	}()
	return nil
}

func (f *fakePipeline) Subscribe() (<-chan pipeline.Result, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSubID
	f.nextSubID++
	ch := make(chan pipeline.Result, 2)
	f.subs[id] = ch
	unsub := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			close(c)
			delete(f.subs, id)
		}
	}
	return ch, unsub
}
