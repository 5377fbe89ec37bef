package logger

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: " WARN ", want: zapcore.WarnLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "", want: zapcore.InfoLevel},
		{in: "verbose", want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesRotatingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, err := New(Config{
		Level: "info",
		File:  FileConfig{Enabled: true, Path: dir, Name: "test.log"},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty")
	}
}

func TestNewFileWriterDefaults(t *testing.T) {
	w, err := newFileWriter(FileConfig{Path: t.TempDir(), MaxBackups: -1})
	if err != nil {
		t.Fatalf("newFileWriter error: %v", err)
	}
	if w.MaxSize != 100 {
		t.Fatalf("MaxSize=%d, want 100", w.MaxSize)
	}
	if w.MaxBackups != 0 {
		t.Fatalf("MaxBackups=%d, want 0", w.MaxBackups)
	}
	if filepath.Base(w.Filename) != defaultFileName {
		t.Fatalf("Filename=%q, want %q", w.Filename, defaultFileName)
	}
}
