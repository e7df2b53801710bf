package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Detection.Backend != "pigo" {
		t.Errorf("expected detection backend pigo, got %s", cfg.Detection.Backend)
	}
	if cfg.Detection.MinSize != 100 {
		t.Errorf("expected min_size 100, got %d", cfg.Detection.MinSize)
	}
	if cfg.Detection.ScaleFactor != 1.1 {
		t.Errorf("expected scale_factor 1.1, got %f", cfg.Detection.ScaleFactor)
	}
	if cfg.Detection.MinNeighbors != 5 {
		t.Errorf("expected min_neighbors 5, got %d", cfg.Detection.MinNeighbors)
	}

	if cfg.Recognition.SimilarityThreshold != 0.4 {
		t.Errorf("expected similarity threshold 0.4, got %f", cfg.Recognition.SimilarityThreshold)
	}

	if cfg.Classifier.Radius != 1 || cfg.Classifier.Neighbors != 8 {
		t.Errorf("expected LBPH radius 1 / neighbors 8, got %d / %d", cfg.Classifier.Radius, cfg.Classifier.Neighbors)
	}
	if cfg.Classifier.GridX != 8 || cfg.Classifier.GridY != 8 {
		t.Errorf("expected 8x8 grid, got %dx%d", cfg.Classifier.GridX, cfg.Classifier.GridY)
	}
	if cfg.Classifier.FaceSize != 200 {
		t.Errorf("expected face size 200, got %d", cfg.Classifier.FaceSize)
	}
	if cfg.Classifier.DistanceThreshold != 60.0 {
		t.Errorf("expected distance threshold 60, got %f", cfg.Classifier.DistanceThreshold)
	}

	if cfg.Storage.Backend != "file" {
		t.Errorf("expected file storage, got %s", cfg.Storage.Backend)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("expected port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "facelogin.yaml")

	configContent := `
detection:
  backend: haar
  min_size: 60
  min_neighbors: 3

recognition:
  similarity_threshold: 0.55
  debug_dir: /tmp/faces

classifier:
  model_path: /models/lbph.yml
  labels_path: /models/labels.json
  distance_threshold: 45.5
  crop_faces: true

storage:
  backend: postgres
  database_url: postgres://localhost/facelogin

server:
  port: 8080
  allowed_origins:
    - https://app.example.com

logging:
  level: debug
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Detection.Backend != "haar" {
		t.Errorf("expected backend haar, got %s", cfg.Detection.Backend)
	}
	if cfg.Detection.MinSize != 60 {
		t.Errorf("expected min_size 60, got %d", cfg.Detection.MinSize)
	}
	// Unset keys keep their defaults.
	if cfg.Detection.ScaleFactor != 1.1 {
		t.Errorf("expected default scale_factor 1.1, got %f", cfg.Detection.ScaleFactor)
	}
	if cfg.Recognition.SimilarityThreshold != 0.55 {
		t.Errorf("expected similarity threshold 0.55, got %f", cfg.Recognition.SimilarityThreshold)
	}
	if cfg.Classifier.DistanceThreshold != 45.5 {
		t.Errorf("expected distance threshold 45.5, got %f", cfg.Classifier.DistanceThreshold)
	}
	if !cfg.Classifier.CropFaces {
		t.Error("expected crop_faces true")
	}
	if cfg.Classifier.Radius != 1 {
		t.Errorf("expected default radius 1, got %d", cfg.Classifier.Radius)
	}
	if cfg.Storage.Backend != "postgres" || cfg.Storage.DatabaseURL == "" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("unexpected allowed origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected json log format, got %s", cfg.Logging.Format)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate, got %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/facelogin.yaml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
	if cfg == nil {
		t.Fatal("Load should return default config on error")
	}
	if cfg.Recognition.SimilarityThreshold != 0.4 {
		t.Error("returned config should carry defaults")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("detection: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FACELOGIN_DETECTOR", "dlib")
	t.Setenv("FACELOGIN_SIMILARITY_THRESHOLD", "0.75")
	t.Setenv("FACELOGIN_DISTANCE_THRESHOLD", "30")
	t.Setenv("FACELOGIN_PORT", "9090")
	t.Setenv("FACELOGIN_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("FACELOGIN_STORAGE", "memory")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Detection.Backend != "dlib" {
		t.Errorf("expected dlib backend, got %s", cfg.Detection.Backend)
	}
	if cfg.Recognition.SimilarityThreshold != 0.75 {
		t.Errorf("expected similarity threshold 0.75, got %f", cfg.Recognition.SimilarityThreshold)
	}
	if cfg.Classifier.DistanceThreshold != 30 {
		t.Errorf("expected distance threshold 30, got %f", cfg.Classifier.DistanceThreshold)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if got := strings.Join(cfg.Server.AllowedOrigins, ","); got != "https://a.example,https://b.example" {
		t.Errorf("unexpected origins: %s", got)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("expected memory storage, got %s", cfg.Storage.Backend)
	}
}

func TestApplyEnv_NaNThresholdFailsValidation(t *testing.T) {
	t.Setenv("FACELOGIN_SIMILARITY_THRESHOLD", "NaN")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to reject a NaN similarity threshold")
	}
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"FACELOGIN_PORT", "eighty"},
		{"FACELOGIN_SIMILARITY_THRESHOLD", "high"},
		{"FACELOGIN_DISTANCE_THRESHOLD", "far"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := DefaultConfig()
			if err := cfg.ApplyEnv(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown detector",
			modify:  func(c *Config) { c.Detection.Backend = "yolo" },
			wantErr: true,
		},
		{
			name:    "zero min size",
			modify:  func(c *Config) { c.Detection.MinSize = 0 },
			wantErr: true,
		},
		{
			name:    "scale factor not above one",
			modify:  func(c *Config) { c.Detection.ScaleFactor = 1.0 },
			wantErr: true,
		},
		{
			name:    "shift factor out of range",
			modify:  func(c *Config) { c.Detection.ShiftFactor = 1.5 },
			wantErr: true,
		},
		{
			name:    "negative min neighbors",
			modify:  func(c *Config) { c.Detection.MinNeighbors = -1 },
			wantErr: true,
		},
		{
			name:    "negative similarity threshold is allowed",
			modify:  func(c *Config) { c.Recognition.SimilarityThreshold = -0.5 },
			wantErr: false,
		},
		{
			name:    "zero similarity threshold is allowed",
			modify:  func(c *Config) { c.Recognition.SimilarityThreshold = 0 },
			wantErr: false,
		},
		{
			name:    "NaN similarity threshold",
			modify:  func(c *Config) { c.Recognition.SimilarityThreshold = math.NaN() },
			wantErr: true,
		},
		{
			name:    "infinite similarity threshold",
			modify:  func(c *Config) { c.Recognition.SimilarityThreshold = math.Inf(-1) },
			wantErr: true,
		},
		{
			name:    "NaN distance threshold",
			modify:  func(c *Config) { c.Classifier.DistanceThreshold = math.NaN() },
			wantErr: true,
		},
		{
			name:    "zero radius",
			modify:  func(c *Config) { c.Classifier.Radius = 0 },
			wantErr: true,
		},
		{
			name:    "too many neighbors",
			modify:  func(c *Config) { c.Classifier.Neighbors = 24 },
			wantErr: true,
		},
		{
			name:    "invalid grid",
			modify:  func(c *Config) { c.Classifier.GridX = 0 },
			wantErr: true,
		},
		{
			name:    "face size too small for radius",
			modify:  func(c *Config) { c.Classifier.FaceSize = 2 },
			wantErr: true,
		},
		{
			name:    "negative distance threshold",
			modify:  func(c *Config) { c.Classifier.DistanceThreshold = -1 },
			wantErr: true,
		},
		{
			name:    "unknown storage",
			modify:  func(c *Config) { c.Storage.Backend = "redis" },
			wantErr: true,
		},
		{
			name:    "postgres without url",
			modify:  func(c *Config) { c.Storage.Backend = "postgres" },
			wantErr: true,
		},
		{
			name:    "invalid port",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero body limit",
			modify:  func(c *Config) { c.Server.MaxBodyBytes = 0 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}
	t.Setenv("FACELOGIN_TEST_DIR", "/opt/facelogin")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"home prefix", "~/models", filepath.Join(homeDir, "models")},
		{"absolute", "/var/lib/facelogin", "/var/lib/facelogin"},
		{"env var", "$FACELOGIN_TEST_DIR/users", "/opt/facelogin/users"},
		{"tilde in middle", "/data/~/x", "/data/~/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.expected {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Storage.DataDir = filepath.Join(tmpDir, "data")
	cfg.Recognition.DebugDir = filepath.Join(tmpDir, "faces")
	cfg.Logging.File = filepath.Join(tmpDir, "logs", "facelogin.log")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{
		filepath.Join(tmpDir, "data", "users"),
		filepath.Join(tmpDir, "faces"),
		filepath.Join(tmpDir, "logs"),
	} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s was not created", dir)
		}
	}
}

func TestEnsureDirectories_MemoryStoreSkipsUsersDir(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Storage.Backend = "memory"
	cfg.Storage.DataDir = filepath.Join(tmpDir, "data")
	cfg.Recognition.DebugDir = ""

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "data")); !os.IsNotExist(err) {
		t.Error("memory store should not create a data directory")
	}
}
