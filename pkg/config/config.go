// Package config provides configuration management for facelogin.
// It loads configuration from YAML files with sensible defaults and lets
// FACELOGIN_* environment variables override individual settings.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all facelogin configuration.
type Config struct {
	Detection   DetectionConfig   `yaml:"detection"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Storage     StorageConfig     `yaml:"storage"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DetectionConfig holds face detector settings.
type DetectionConfig struct {
	Backend      string  `yaml:"backend"` // "pigo", "dlib" or "haar"
	CascadePath  string  `yaml:"cascade_path"`
	ModelPath    string  `yaml:"model_path"` // dlib model directory
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	ShiftFactor  float64 `yaml:"shift_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
	MinQuality   float64 `yaml:"min_quality"`
	IoUThreshold float64 `yaml:"iou_threshold"`
}

// RecognitionConfig holds the geometric matcher settings used by the live API.
type RecognitionConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DebugDir            string  `yaml:"debug_dir"`
}

// ClassifierConfig holds the offline texture classifier settings.
type ClassifierConfig struct {
	DataDir           string  `yaml:"data_dir"`
	ModelPath         string  `yaml:"model_path"`
	LabelsPath        string  `yaml:"labels_path"`
	Radius            int     `yaml:"radius"`
	Neighbors         int     `yaml:"neighbors"`
	GridX             int     `yaml:"grid_x"`
	GridY             int     `yaml:"grid_y"`
	FaceSize          int     `yaml:"face_size"`
	DistanceThreshold float64 `yaml:"distance_threshold"`
	CropFaces         bool    `yaml:"crop_faces"`
}

// StorageConfig holds identity store settings.
type StorageConfig struct {
	Backend           string `yaml:"backend"` // "file", "memory" or "postgres"
	DataDir           string `yaml:"data_dir"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
	DatabaseURL       string `yaml:"database_url"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/facelogin")
	return &Config{
		Detection: DetectionConfig{
			Backend:      "pigo",
			CascadePath:  filepath.Join(dataDir, "models", "facefinder"),
			ModelPath:    filepath.Join(dataDir, "models"),
			MinSize:      100,
			MaxSize:      0,
			ScaleFactor:  1.1,
			ShiftFactor:  0.1,
			MinNeighbors: 5,
			MinQuality:   5.0,
			IoUThreshold: 0.2,
		},
		Recognition: RecognitionConfig{
			SimilarityThreshold: 0.4,
			DebugDir:            filepath.Join(dataDir, "faces"),
		},
		Classifier: ClassifierConfig{
			DataDir:           "data/raw",
			ModelPath:         "models/lbph_model.yml",
			LabelsPath:        "models/labels.json",
			Radius:            1,
			Neighbors:         8,
			GridX:             8,
			GridY:             8,
			FaceSize:          200,
			DistanceThreshold: 60.0,
			CropFaces:         false,
		},
		Storage: StorageConfig{
			Backend:           "file",
			DataDir:           dataDir,
			EncryptionEnabled: false,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5000,
			MaxBodyBytes: 10 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

// Load loads configuration from the specified file on top of the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/facelogin/facelogin.yaml"); err == nil {
		return Load("/etc/facelogin/facelogin.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/facelogin/facelogin.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// ApplyEnv overrides settings from FACELOGIN_* environment variables.
// Malformed numeric values are reported instead of being silently ignored.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"FACELOGIN_DETECTOR":     &c.Detection.Backend,
		"FACELOGIN_CASCADE_PATH": &c.Detection.CascadePath,
		"FACELOGIN_DLIB_MODELS":  &c.Detection.ModelPath,
		"FACELOGIN_DEBUG_DIR":    &c.Recognition.DebugDir,
		"FACELOGIN_MODEL_PATH":   &c.Classifier.ModelPath,
		"FACELOGIN_LABELS_PATH":  &c.Classifier.LabelsPath,
		"FACELOGIN_TRAINING_DIR": &c.Classifier.DataDir,
		"FACELOGIN_STORAGE":      &c.Storage.Backend,
		"FACELOGIN_DATA_DIR":     &c.Storage.DataDir,
		"FACELOGIN_DATABASE_URL": &c.Storage.DatabaseURL,
		"FACELOGIN_HOST":         &c.Server.Host,
		"FACELOGIN_LOG_LEVEL":    &c.Logging.Level,
		"FACELOGIN_LOG_FORMAT":   &c.Logging.Format,
		"FACELOGIN_LOG_FILE":     &c.Logging.File,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"FACELOGIN_SIMILARITY_THRESHOLD": &c.Recognition.SimilarityThreshold,
		"FACELOGIN_DISTANCE_THRESHOLD":   &c.Classifier.DistanceThreshold,
	}
	for key, dst := range floats {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = f
		}
	}

	if v, ok := os.LookupEnv("FACELOGIN_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FACELOGIN_PORT: %w", err)
		}
		c.Server.Port = port
	}

	if v, ok := os.LookupEnv("FACELOGIN_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, origin)
			}
		}
	}

	return nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validDetectors := map[string]bool{"pigo": true, "dlib": true, "haar": true}
	if !validDetectors[c.Detection.Backend] {
		return fmt.Errorf("invalid detection backend: %s (must be pigo, dlib or haar)", c.Detection.Backend)
	}
	if c.Detection.MinSize <= 0 {
		return fmt.Errorf("detection min_size must be positive, got %d", c.Detection.MinSize)
	}
	if c.Detection.MaxSize < 0 {
		return fmt.Errorf("detection max_size must not be negative, got %d", c.Detection.MaxSize)
	}
	if c.Detection.ScaleFactor <= 1 {
		return fmt.Errorf("detection scale_factor must be greater than 1, got %f", c.Detection.ScaleFactor)
	}
	if c.Detection.ShiftFactor <= 0 || c.Detection.ShiftFactor > 1 {
		return fmt.Errorf("detection shift_factor must be in (0, 1], got %f", c.Detection.ShiftFactor)
	}
	if c.Detection.MinNeighbors < 0 {
		return fmt.Errorf("detection min_neighbors must not be negative, got %d", c.Detection.MinNeighbors)
	}

	if !isFinite(c.Recognition.SimilarityThreshold) {
		return fmt.Errorf("similarity_threshold must be a finite number, got %f", c.Recognition.SimilarityThreshold)
	}

	if c.Classifier.Radius <= 0 {
		return fmt.Errorf("classifier radius must be positive, got %d", c.Classifier.Radius)
	}
	if c.Classifier.Neighbors <= 0 || c.Classifier.Neighbors > 16 {
		return fmt.Errorf("classifier neighbors must be between 1 and 16, got %d", c.Classifier.Neighbors)
	}
	if c.Classifier.GridX <= 0 || c.Classifier.GridY <= 0 {
		return fmt.Errorf("invalid classifier grid: %dx%d", c.Classifier.GridX, c.Classifier.GridY)
	}
	if c.Classifier.FaceSize <= 2*c.Classifier.Radius {
		return fmt.Errorf("classifier face_size %d too small for radius %d", c.Classifier.FaceSize, c.Classifier.Radius)
	}
	if !isFinite(c.Classifier.DistanceThreshold) || c.Classifier.DistanceThreshold < 0 {
		return fmt.Errorf("distance_threshold must not be negative, got %f", c.Classifier.DistanceThreshold)
	}

	validStores := map[string]bool{"file": true, "memory": true, "postgres": true}
	if !validStores[c.Storage.Backend] {
		return fmt.Errorf("invalid storage backend: %s (must be file, memory or postgres)", c.Storage.Backend)
	}
	if c.Storage.Backend == "postgres" && c.Storage.DatabaseURL == "" {
		return fmt.Errorf("storage backend postgres requires database_url")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Detection.CascadePath = ExpandPath(c.Detection.CascadePath)
	c.Detection.ModelPath = ExpandPath(c.Detection.ModelPath)
	c.Recognition.DebugDir = ExpandPath(c.Recognition.DebugDir)
	c.Classifier.DataDir = ExpandPath(c.Classifier.DataDir)
	c.Classifier.ModelPath = ExpandPath(c.Classifier.ModelPath)
	c.Classifier.LabelsPath = ExpandPath(c.Classifier.LabelsPath)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates the directories the server writes into.
func (c *Config) EnsureDirectories() error {
	if c.Storage.Backend == "file" {
		if err := os.MkdirAll(filepath.Join(c.Storage.DataDir, "users"), 0700); err != nil {
			return fmt.Errorf("failed to create users directory: %w", err)
		}
	}

	if c.Recognition.DebugDir != "" {
		if err := os.MkdirAll(c.Recognition.DebugDir, 0755); err != nil {
			return fmt.Errorf("failed to create debug image directory: %w", err)
		}
	}

	if c.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Logging.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return nil
}
