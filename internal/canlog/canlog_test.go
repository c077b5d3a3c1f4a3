package canlog

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "canmlio/internal/errors"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func drain(t *testing.T, src Source) []Frame {
	t.Helper()
	var frames []Frame
	for {
		f, err := src.Next()
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.log"))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestOpen_Directory(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLogReader_ParsesFrames(t *testing.T) {
	path := writeLog(t, `(1690000000.000100) can0 100#1027
(1690000000.000200) can0 101#FF
(1690000000.000300) can0 1FFFFFFF#DEADBEEF00112233
`)

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	frames := drain(t, src)
	require.Len(t, frames, 3)

	assert.Equal(t, uint32(0x100), frames[0].ID)
	assert.Equal(t, []byte{0x10, 0x27}, frames[0].Data)
	assert.InDelta(t, 1690000000.0001, frames[0].Timestamp, 1e-9)

	assert.Equal(t, uint32(0x101), frames[1].ID)
	assert.Equal(t, uint32(0x1FFFFFFF), frames[2].ID)
	assert.Len(t, frames[2].Data, 8)
}

func TestLogReader_SkipsNonDataLines(t *testing.T) {
	path := writeLog(t, `# comment header
(1690000000.000100) can0 100#11

(1690000000.000200) can0 200#R
garbage line
(1690000000.000300) can0 100#22
(bad-timestamp) can0 100#33
(1690000000.000400) can0 ZZZ#44
`)

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	frames := drain(t, src)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte{0x11}, frames[0].Data)
	assert.Equal(t, []byte{0x22}, frames[1].Data)
}

func TestLogReader_CloseIdempotent(t *testing.T) {
	path := writeLog(t, "(1690000000.000100) can0 100#11\n")

	src, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
}

func TestLogReader_EmptyFile(t *testing.T) {
	src, err := Open(writeLog(t, ""))
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestSliceSource(t *testing.T) {
	src := &SliceSource{Frames: []Frame{
		{ID: 1, Data: []byte{0x01}, Timestamp: 0.1},
		{ID: 2, Data: []byte{0x02}, Timestamp: 0.2},
	}}

	first, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), first.ID)

	second, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), second.ID)

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)

	require.NoError(t, src.Close())
	assert.True(t, src.Closed)
}
