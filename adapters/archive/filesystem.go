// Package archive writes call transcripts and recordings to disk.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/audio"
)

const timestampLayout = "20060102_150405"

var speakerLabels = map[entities.Track]struct{ file, line string }{
	entities.TrackCaller:     {file: "caller", line: "Caller"},
	entities.TrackDispatcher: {file: "dispatch", line: "Dispatcher"},
}

// Filesystem stores transcripts as text and recordings as 16-bit WAV
type Filesystem struct {
	transcriptsDir string
	recordingsDir  string
	now            func() time.Time
	logger         *zap.Logger
}

var _ repositories.CallArchive = (*Filesystem)(nil)

func NewFilesystem(transcriptsDir, recordingsDir string, logger *zap.Logger) *Filesystem {
	return &Filesystem{
		transcriptsDir: transcriptsDir,
		recordingsDir:  recordingsDir,
		now:            time.Now,
		logger:         logger.With(zap.String("component", "archive")),
	}
}

// Store writes one transcript file per party that spoke and the caller
// recording, if any. It returns the recording path.
func (f *Filesystem) Store(ctx context.Context, artifacts repositories.CallArtifacts) (string, error) {
	stamp := f.now().Format(timestampLayout)
	number := sanitize(artifacts.CallerNumber)

	for _, track := range []entities.Track{entities.TrackCaller, entities.TrackDispatcher} {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		lines := artifacts.Transcripts[track]
		if len(lines) == 0 {
			continue
		}
		label := speakerLabels[track]
		name := fmt.Sprintf("transcript_%s_%s_%s.txt", label.file, number, stamp)
		if err := f.write(f.transcriptsDir, name, []byte(formatTranscript(label.line, lines))); err != nil {
			return "", err
		}
	}

	if len(artifacts.Recording) == 0 {
		return "", nil
	}
	rate := artifacts.SampleRate
	if rate == 0 {
		rate = audio.WidebandRate
	}
	name := fmt.Sprintf("recording_%s_%s.wav", sanitize(artifacts.CallSID), stamp)
	if err := f.write(f.recordingsDir, name, audio.EncodeWAV(artifacts.Recording, rate)); err != nil {
		return "", err
	}
	return filepath.Join(f.recordingsDir, name), nil
}

func (f *Filesystem) write(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	f.logger.Info("Archived", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

func formatTranscript(label string, lines []entities.TranscriptEvent) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] [%s]: %s", line.Timestamp.Format("15:04:05"), label, line.Text)
	}
	return b.String()
}

// sanitize keeps caller numbers and call ids safe as file name parts
func sanitize(s string) string {
	if s == "" {
		return entities.UnknownCaller
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '+', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
