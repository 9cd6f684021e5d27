package tasks

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestScanGroupsSweeps(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"pano_001.jpg", "pano_002.jpg", "pano_003.jpg", "pano_004.jpg"} {
		touch(t, filepath.Join(root, "sweep", name))
	}
	touch(t, filepath.Join(root, "solo", "one.png"))
	touch(t, filepath.Join(root, "notes.txt"))

	res, err := Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Images) != 5 {
		t.Fatalf("expected 5 images, got %d: %v", len(res.Images), res.Images)
	}

	var sweepFound, singleFound bool
	for _, g := range res.Groups {
		if g.BasePath == filepath.Join(root, "sweep") && g.GroupType == "sweep" {
			sweepFound = true
			if g.Count != 4 {
				t.Fatalf("expected 4 images in sweep group, got %d", g.Count)
			}
		}
		if g.BasePath == filepath.Join(root, "solo") && g.GroupType == "single" {
			singleFound = true
		}
	}
	if !sweepFound {
		t.Fatalf("expected a sweep group, got %+v", res.Groups)
	}
	if !singleFound {
		t.Fatalf("expected a single group, got %+v", res.Groups)
	}
}

func TestScanEmptyDirectory(t *testing.T) {
	res, err := Scan(t.TempDir())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Images) != 0 || len(res.Groups) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}
