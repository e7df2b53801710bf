package training

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCollect(t *testing.T) {
	src := t.TempDir()
	var sources []string
	for i, period := range []int{10, 20, 30} {
		p := filepath.Join(src, []string{"a.png", "b.png", "c.png"}[i])
		writeImage(t, p, stripes(64, period, true))
		sources = append(sources, p)
	}
	broken := filepath.Join(src, "broken.jpg")
	if err := os.WriteFile(broken, []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}

	dataDir := t.TempDir()
	written, err := Collect(CollectOptions{DataDir: dataDir, Name: "alice"}, append([]string{broken}, sources...))
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("expected 3 images, got %v", written)
	}
	if filepath.Base(written[0]) != "alice_000.jpg" || filepath.Base(written[2]) != "alice_002.jpg" {
		t.Errorf("unexpected names %v", written)
	}

	// A second run continues numbering and honors the limit.
	written, err = Collect(CollectOptions{DataDir: dataDir, Name: "alice", Limit: 1}, sources)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(written) != 1 || filepath.Base(written[0]) != "alice_003.jpg" {
		t.Errorf("unexpected second run %v", written)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ds, err := LoadDataset(ctx, Options{DataDir: dataDir})
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Samples) != 4 {
		t.Errorf("collected images not loadable: %d samples", len(ds.Samples))
	}
}

func TestCollect_InvalidName(t *testing.T) {
	for _, name := range []string{"", "..", "a/b", " bob"} {
		if _, err := Collect(CollectOptions{DataDir: t.TempDir(), Name: name}, nil); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}
