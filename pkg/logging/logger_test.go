package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newBufferedLogger(level logrus.Level) *bytes.Buffer {
	var buf bytes.Buffer
	Logger = logrus.New()
	Logger.SetOutput(&buf)
	Logger.SetLevel(level)
	Logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"WARNING", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"bogus", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := ParseLevel(tt.level); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	Logger = logrus.New()

	if err := Init("debug", ""); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %v", Logger.GetLevel())
	}
}

func TestInit_WithNestedLogFile(t *testing.T) {
	Logger = logrus.New()
	logFile := filepath.Join(t.TempDir(), "logs", "nested", "facelogin.log")

	if err := Init("info", logFile); err != nil {
		t.Fatalf("Init with log file failed: %v", err)
	}

	Logger.Info("written to file")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing message, got %q", string(data))
	}
}

func TestSetFormat_JSON(t *testing.T) {
	var buf bytes.Buffer
	Logger = logrus.New()
	Logger.SetOutput(&buf)
	SetFormat("json")

	Component("auth").WithField("user_id", "alice").Info("authentication accepted")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "auth" {
		t.Errorf("component = %v, want auth", entry["component"])
	}
	if entry["user_id"] != "alice" {
		t.Errorf("user_id = %v, want alice", entry["user_id"])
	}
	if entry["msg"] != "authentication accepted" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

func TestFormattedHelpers(t *testing.T) {
	buf := newBufferedLogger(logrus.DebugLevel)

	Debug("plain debug")
	Info("plain info")
	Debugf("debug %s", "formatted")
	Infof("info %d", 42)
	Warnf("warn %s", "test")
	Errorf("error %s", "occurred")

	output := buf.String()
	for _, want := range []string{"plain debug", "plain info", "debug formatted", "info 42", "warn test", "error occurred"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestWithFields(t *testing.T) {
	buf := newBufferedLogger(logrus.InfoLevel)

	WithFields(Fields{
		"user_id": "bob",
		"mode":    "live",
	}).Info("frame processed")

	output := buf.String()
	if !strings.Contains(output, "user_id=bob") {
		t.Error("user_id field not in output")
	}
	if !strings.Contains(output, "mode=live") {
		t.Error("mode field not in output")
	}
}

func TestWithError(t *testing.T) {
	buf := newBufferedLogger(logrus.ErrorLevel)

	WithError(os.ErrNotExist).Error("store load failed")

	if !strings.Contains(buf.String(), "file does not exist") {
		t.Errorf("error not in output: %q", buf.String())
	}
}

func TestComponent(t *testing.T) {
	buf := newBufferedLogger(logrus.InfoLevel)

	Component("detector").Info("cascade loaded")

	output := buf.String()
	if !strings.Contains(output, "component=detector") {
		t.Error("component field not in output")
	}
	if !strings.Contains(output, "cascade loaded") {
		t.Error("message not in output")
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := newBufferedLogger(logrus.ErrorLevel)

	Debugf("debug")
	Infof("info")
	Warnf("warn")
	if buf.Len() > 0 {
		t.Errorf("expected nothing below error level, got %q", buf.String())
	}

	Errorf("error")
	if buf.Len() == 0 {
		t.Error("error should be logged at error level")
	}
}

func BenchmarkComponentInfo(b *testing.B) {
	Logger = logrus.New()
	Logger.SetOutput(&bytes.Buffer{})
	entry := Component("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		entry.WithField("i", i).Info("benchmark message")
	}
}
