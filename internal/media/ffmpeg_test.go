package media

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wavBytes builds a minimal 16-bit mono PCM WAV with n samples.
func wavBytes(sampleRate, n int) []byte {
	data := make([]byte, n*2)
	b := make([]byte, 0, 44+len(data))
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(36+len(data)))
	b = append(b, "WAVE"...)
	b = append(b, "fmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, 1) // PCM
	b = binary.LittleEndian.AppendUint16(b, 1) // mono
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate))
	b = binary.LittleEndian.AppendUint32(b, uint32(sampleRate*2))
	b = binary.LittleEndian.AppendUint16(b, 2)
	b = binary.LittleEndian.AppendUint16(b, 16)
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(data)))
	return append(b, data...)
}

func TestWAVDuration(t *testing.T) {
	d, err := WAVDuration(wavBytes(16000, 32000))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 1e-9)
}

func TestWAVDurationRejectsOtherFormats(t *testing.T) {
	_, err := WAVDuration([]byte("ID3 not really an mp3"))
	assert.ErrorIs(t, err, ErrNotWAV)
}

func TestPrepareWithoutFFmpegKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "call.wav")
	require.NoError(t, os.WriteFile(in, wavBytes(8000, 8000), 0o644))

	n := NewNormalizer(dir, nil)
	n.FFmpeg = "definitely-not-ffmpeg-binary"
	n.FFprobe = "definitely-not-ffprobe-binary"

	p, err := n.Prepare(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, p.Path)
	assert.False(t, p.Temporary)
	assert.Equal(t, "wav", p.Format)
	assert.InDelta(t, 1.0, p.Duration, 1e-9)

	p.Cleanup()
	_, err = os.Stat(in)
	assert.NoError(t, err, "cleanup must not remove the source file")
}

func TestPrepareMissingFile(t *testing.T) {
	_, err := NewNormalizer("", nil).Prepare(context.Background(), "/nonexistent/file.mp3")
	assert.Error(t, err)
}
