package playback

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/chiku/internal/media"
)

// FileName is the local name of a saved payload. The millisecond timestamp
// keeps repeated saves from colliding.
func FileName(p media.Payload, at time.Time) string {
	if p.Kind == media.KindAudio {
		return fmt.Sprintf("chiku-audio-%d.mp3", at.UnixMilli())
	}
	subType := p.SubType
	if subType == "" {
		subType = media.SubTypeGenerated
	}
	return fmt.Sprintf("chiku-%s-%d.png", subType, at.UnixMilli())
}

// Saver writes payloads into a directory. One save runs at a time; clicks
// arriving while a save is in progress are dropped.
type Saver struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
	busy   atomic.Bool
}

// NewSaver creates a saver for dir.
func NewSaver(dir string, logger *zap.Logger) *Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{dir: dir, now: time.Now, logger: logger}
}

// Busy reports whether a save is in progress.
func (s *Saver) Busy() bool {
	return s.busy.Load()
}

// Save writes p and returns the file path. It returns false when another
// save is running or the write failed; failures are logged only.
func (s *Saver) Save(p media.Payload) (string, bool) {
	if !s.busy.CompareAndSwap(false, true) {
		return "", false
	}
	defer s.busy.Store(false)

	path, err := s.write(p)
	if err != nil {
		s.logger.Warn("failed to save media",
			zap.String("kind", string(p.Kind)),
			zap.String("dir", s.dir),
			zap.Error(err),
		)
		return "", false
	}
	s.logger.Info("media saved", zap.String("path", path), zap.Int("bytes", p.Size))
	return path, true
}

func (s *Saver) write(p media.Payload) (string, error) {
	_, data, err := media.DecodeDataURI(p.DataURI)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(s.dir, FileName(p, s.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
