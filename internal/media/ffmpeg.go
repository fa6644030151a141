// Package media prepares uploaded audio for the speech recognizer.
package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"healthcare-call-insights/internal/logger"
)

const (
	TargetSampleRate = 16000
	TargetChannels   = 1
)

// Prepared is an audio file ready to upload.
type Prepared struct {
	Path      string
	Temporary bool
	Duration  float64
	// Format is the original file extension without the dot.
	Format string
}

// Cleanup removes the converted file when one was created.
func (p Prepared) Cleanup() {
	if p.Temporary && p.Path != "" {
		_ = os.Remove(p.Path)
	}
}

type Normalizer struct {
	FFmpeg  string
	FFprobe string
	TmpDir  string
	log     *logger.Logger
}

func NewNormalizer(tmpDir string, log *logger.Logger) *Normalizer {
	return &Normalizer{FFmpeg: "ffmpeg", FFprobe: "ffprobe", TmpDir: tmpDir, log: logger.OrDiscard(log).Component("media")}
}

// Prepare converts the input to mono 16kHz WAV with ffmpeg. Without ffmpeg
// the original file is returned untouched; WAV input still gets a duration
// from its header.
func (n *Normalizer) Prepare(ctx context.Context, in string) (Prepared, error) {
	if _, err := os.Stat(in); err != nil {
		return Prepared{}, fmt.Errorf("stat audio: %w", err)
	}
	p := Prepared{Path: in, Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(in)), ".")}

	if _, err := exec.LookPath(n.FFmpeg); err != nil {
		n.log.WithField("file", in).Warn("ffmpeg not found, sending audio unconverted")
		p.Duration = n.duration(ctx, in)
		return p, nil
	}

	tmpDir := n.TmpDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	out, err := os.CreateTemp(tmpDir, base+"_16k_*.wav")
	if err != nil {
		return Prepared{}, fmt.Errorf("create temp: %w", err)
	}
	_ = out.Close()

	// ffmpeg -y -i input -ac 1 -ar 16000 -f wav output
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, n.FFmpeg,
		"-y", "-i", in,
		"-ac", strconv.Itoa(TargetChannels), "-ar", strconv.Itoa(TargetSampleRate),
		"-sample_fmt", "s16",
		"-f", "wav",
		out.Name(),
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(out.Name())
		return Prepared{}, fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}

	p.Path = out.Name()
	p.Temporary = true
	p.Duration = n.duration(ctx, p.Path)
	n.log.WithFields(map[string]interface{}{
		"file":     in,
		"out":      p.Path,
		"duration": p.Duration,
	}).Debug("audio converted")
	return p, nil
}

func (n *Normalizer) duration(ctx context.Context, path string) float64 {
	if d, err := WAVDurationFile(path); err == nil {
		return d
	}
	if _, err := exec.LookPath(n.FFprobe); err != nil {
		return 0
	}
	out, err := exec.CommandContext(ctx, n.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0
	}
	d, _ := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	return d
}

// ErrNotWAV is returned for files without a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a wav file")

// WAVDurationFile reads the duration of a PCM WAV file from its header.
func WAVDurationFile(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return WAVDuration(b)
}

// WAVDuration walks the RIFF chunks for fmt and data and returns seconds.
func WAVDuration(b []byte) (float64, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return 0, ErrNotWAV
	}
	var byteRate uint32
	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := binary.LittleEndian.Uint32(b[off+4 : off+8])
		body := off + 8
		switch id {
		case "fmt ":
			if body+12 > len(b) {
				return 0, ErrNotWAV
			}
			byteRate = binary.LittleEndian.Uint32(b[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, ErrNotWAV
			}
			return float64(size) / float64(byteRate), nil
		}
		off = body + int(size) + int(size%2)
	}
	return 0, ErrNotWAV
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
