package storage

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "panstitch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJobLifecycle(t *testing.T) {
	s := newTestStore(t)

	rec := JobRecord{
		ID:        "stitch-1",
		JobType:   "stitch",
		Status:    "queued",
		InputPath: "/photos/pano",
	}
	if err := s.RecordJobQueued(rec); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if err := s.RecordJobStart("stitch-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.RecordJobResult("stitch-1", "completed", map[string]any{"canvas_width": 350}, ""); err != nil {
		t.Fatalf("result: %v", err)
	}

	got, err := s.Job("stitch-1")
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if got.Status != "completed" || got.InputPath != "/photos/pano" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatalf("expected start/completion timestamps")
	}

	meta, err := s.JobMeta("stitch-1")
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta["canvas_width"] != float64(350) {
		t.Fatalf("unexpected meta: %v", meta)
	}

	recent, err := s.RecentJobs(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "stitch-1" {
		t.Fatalf("unexpected recent jobs: %+v", recent)
	}
}

func TestTransformsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	recs := []TransformRecord{
		{JobID: "j1", ImageIndex: 0, ImagePath: "a.jpg", Homography: [9]float64{1, 0, -150, 0, 1, 0, 0, 0, 1}, Projection: "flat", CanvasWidth: 350, CanvasHeight: 200},
		{JobID: "j1", ImageIndex: 1, ImagePath: "b.jpg", Homography: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, Projection: "flat", CanvasWidth: 350, CanvasHeight: 200},
	}
	if err := s.RecordTransforms(recs); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := s.Transforms("j1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ImageIndex != 0 || got[0].Homography[2] != -150 {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[1].Projection != "flat" || got[1].CanvasWidth != 350 {
		t.Fatalf("unexpected second record: %+v", got[1])
	}
}

func TestFailedJobKeepsError(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordJobQueued(JobRecord{ID: "bad", JobType: "stitch", Status: "queued"}); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if err := s.RecordJobResult("bad", "failed", nil, "stitch: image 0 and 1 do not match"); err != nil {
		t.Fatalf("result: %v", err)
	}
	got, err := s.Job("bad")
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if got.Status != "failed" || got.Error == "" {
		t.Fatalf("expected failure recorded, got %+v", got)
	}
}

func TestNilStoreIsNoOp(t *testing.T) {
	var s *Store
	if err := s.RecordJobQueued(JobRecord{ID: "x"}); err != nil {
		t.Fatalf("nil store should no-op, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("nil close should no-op, got %v", err)
	}
}
