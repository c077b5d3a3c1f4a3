package decode

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canmlio/internal/canlog"
	"canmlio/internal/dictionary"
	apperrors "canmlio/internal/errors"
	"canmlio/internal/table"
)

const testDictionary = `version: 1
messages:
  - id: 1
    name: Drive
    length: 8
    signals:
      - name: SpeedKph
        start: 0
        length: 16
        scale: 0.1
      - name: EngineRPM
        start: 16
        length: 16
`

func buildTestRegistry(t *testing.T) *dictionary.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drive.yml")
	require.NoError(t, os.WriteFile(path, []byte(testDictionary), 0644))
	reg, err := dictionary.Build([]string{path}, false)
	require.NoError(t, err)
	return reg
}

// driveFrame packs raw speed and rpm values into a Drive payload.
func driveFrame(ts float64, speedRaw, rpmRaw uint16) canlog.Frame {
	return canlog.Frame{
		ID:        1,
		Timestamp: ts,
		Data: []byte{
			byte(speedRaw), byte(speedRaw >> 8),
			byte(rpmRaw), byte(rpmRaw >> 8),
			0, 0, 0, 0,
		},
	}
}

type recordingReporter struct {
	calls []Stats
}

func (r *recordingReporter) Progress(s Stats) {
	r.calls = append(r.calls, s)
}

func TestStream_ChunksAndStats(t *testing.T) {
	reg := buildTestRegistry(t)
	src := &canlog.SliceSource{Frames: []canlog.Frame{
		driveFrame(0.0, 10, 800),
		driveFrame(0.1, 20, 810),
		driveFrame(0.2, 30, 820),
		driveFrame(0.3, 40, 830),
		driveFrame(0.4, 50, 840),
	}}
	cfg := table.DefaultConfig()
	cfg.ChunkSize = 2

	stream, err := NewStream(src, reg, cfg, StreamOptions{})
	require.NoError(t, err)

	var sizes []int
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, chunk.NumRows())
	}

	assert.Equal(t, []int{2, 2, 1}, sizes, "full chunks then the partial remainder")
	assert.True(t, src.Closed, "source is released at exhaustion")

	stats := stream.Stats()
	assert.Equal(t, int64(5), stats.FramesRead)
	assert.Equal(t, int64(5), stats.RowsBuffered)
	assert.Equal(t, int64(3), stats.ChunksEmitted)
	assert.Zero(t, stats.DecodeFailures)
}

func TestStream_DecodedValues(t *testing.T) {
	reg := buildTestRegistry(t)
	src := &canlog.SliceSource{Frames: []canlog.Frame{driveFrame(1.5, 123, 2500)}}

	stream, err := NewStream(src, reg, table.DefaultConfig(), StreamOptions{})
	require.NoError(t, err)

	chunk, err := stream.Next()
	require.NoError(t, err)
	require.Equal(t, 1, chunk.NumRows())
	assert.Equal(t, []string{"timestamp", "SpeedKph", "EngineRPM"}, chunk.ColumnNames())

	ts, _ := chunk.Column("timestamp")
	assert.Equal(t, 1.5, ts.Floats[0])

	speed, _ := chunk.Column("SpeedKph")
	assert.InDelta(t, 12.3, speed.Floats[0], 1e-9)

	rpm, _ := chunk.Column("EngineRPM")
	assert.Equal(t, 2500.0, rpm.Floats[0])
}

func TestStream_IDFilter(t *testing.T) {
	reg := buildTestRegistry(t)
	other := canlog.Frame{ID: 2, Timestamp: 0.1, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	src := &canlog.SliceSource{Frames: []canlog.Frame{
		driveFrame(0.0, 10, 800),
		other,
		driveFrame(0.2, 20, 810),
	}}

	stream, err := NewStream(src, reg, table.DefaultConfig(), StreamOptions{IDs: []uint32{1}})
	require.NoError(t, err)

	chunks, err := Collect(stream)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].NumRows())

	stats := stream.Stats()
	assert.Equal(t, int64(3), stats.FramesRead)
	assert.Equal(t, int64(1), stats.FramesFiltered)
	assert.Zero(t, stats.DecodeFailures, "filtered frames are not decode failures")
}

func TestStream_DecodeFailuresAreDropped(t *testing.T) {
	reg := buildTestRegistry(t)
	src := &canlog.SliceSource{Frames: []canlog.Frame{
		{ID: 99, Timestamp: 0.0, Data: []byte{0, 0}},
		driveFrame(0.1, 10, 800),
		{ID: 1, Timestamp: 0.2, Data: []byte{0x01}},
	}}

	stream, err := NewStream(src, reg, table.DefaultConfig(), StreamOptions{})
	require.NoError(t, err)

	chunks, err := Collect(stream)
	require.NoError(t, err, "decode failures never surface as errors")
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].NumRows())

	stats := stream.Stats()
	assert.Equal(t, int64(2), stats.DecodeFailures, "unknown id and short payload both drop")
}

func TestStream_SignalFilter(t *testing.T) {
	reg := buildTestRegistry(t)
	src := &canlog.SliceSource{Frames: []canlog.Frame{driveFrame(0.0, 10, 800)}}

	stream, err := NewStream(src, reg, table.DefaultConfig(), StreamOptions{Signals: []string{"SpeedKph"}})
	require.NoError(t, err)

	chunk, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"timestamp", "SpeedKph"}, chunk.ColumnNames())
}

func TestStream_SignalFilterDropsEmptyRows(t *testing.T) {
	reg := buildTestRegistry(t)
	src := &canlog.SliceSource{Frames: []canlog.Frame{driveFrame(0.0, 10, 800)}}

	stream, err := NewStream(src, reg, table.DefaultConfig(), StreamOptions{Signals: []string{"SomethingElse"}})
	require.NoError(t, err)

	_, err = stream.Next()
	assert.Equal(t, io.EOF, err, "rows stripped of every signal are dropped whole")
	assert.Equal(t, int64(1), stream.Stats().EmptyRowsDropped)
}

func TestStream_SourceError(t *testing.T) {
	reg := buildTestRegistry(t)
	readErr := errors.New("bus gone")
	src := &canlog.ErrSource{Frames: []canlog.Frame{driveFrame(0.0, 10, 800)}, Err: readErr}
	cfg := table.DefaultConfig()

	stream, err := NewStream(src, reg, cfg, StreamOptions{})
	require.NoError(t, err)

	_, err = stream.Next()
	assert.ErrorIs(t, err, readErr)
	assert.True(t, src.Closed, "source is released on read failure")

	_, err = stream.Next()
	assert.ErrorIs(t, err, readErr, "the stream stays failed")
}

func TestNewStream_InvalidConfigClosesSource(t *testing.T) {
	reg := buildTestRegistry(t)
	src := &canlog.SliceSource{}
	cfg := table.DefaultConfig()
	cfg.ChunkSize = -1

	_, err := NewStream(src, reg, cfg, StreamOptions{})
	assert.Error(t, err)
	assert.True(t, src.Closed)
}

func TestStream_ProgressReporting(t *testing.T) {
	reg := buildTestRegistry(t)
	cfg := table.DefaultConfig()
	cfg.ChunkSize = 1

	t.Run("enabled", func(t *testing.T) {
		rep := &recordingReporter{}
		src := &canlog.SliceSource{Frames: []canlog.Frame{
			driveFrame(0.0, 1, 1),
			driveFrame(0.1, 2, 2),
		}}
		stream, err := NewStream(src, reg, cfg, StreamOptions{Reporter: rep})
		require.NoError(t, err)

		_, err = Collect(stream)
		require.NoError(t, err)
		require.Len(t, rep.calls, 2, "one report per emitted chunk")
		assert.Equal(t, int64(2), rep.calls[1].ChunksEmitted)
	})

	t.Run("disabled by config", func(t *testing.T) {
		rep := &recordingReporter{}
		quiet := *cfg
		quiet.ProgressBar = false
		src := &canlog.SliceSource{Frames: []canlog.Frame{driveFrame(0.0, 1, 1)}}
		stream, err := NewStream(src, reg, &quiet, StreamOptions{Reporter: rep})
		require.NoError(t, err)

		_, err = Collect(stream)
		require.NoError(t, err)
		assert.Empty(t, rep.calls)
	})
}

func TestLoad_EndToEnd(t *testing.T) {
	reg := buildTestRegistry(t)
	src := &canlog.SliceSource{Frames: []canlog.Frame{
		driveFrame(0.0, 100, 900),
		driveFrame(0.1, 110, 910),
		driveFrame(0.2, 120, 920),
	}}
	cfg := table.DefaultConfig()
	cfg.ChunkSize = 2

	got, stats, err := Load(src, reg, cfg, LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, got.NumRows())
	assert.Equal(t, []string{"timestamp", "SpeedKph", "EngineRPM"}, got.ColumnNames())
	assert.Equal(t, int64(3), stats.RowsBuffered)
	assert.Equal(t, int64(2), stats.ChunksEmitted)

	speed, _ := got.Column("SpeedKph")
	assert.InDelta(t, 10.0, speed.Floats[0], 1e-9)
	assert.InDelta(t, 12.0, speed.Floats[2], 1e-9)
	assert.True(t, src.Closed)
}

func TestLoad_ExpectedSubsetDropsForeignRows(t *testing.T) {
	const twoMessages = `version: 1
messages:
  - id: 1
    name: Drive
    length: 8
    signals:
      - name: SpeedKph
        start: 0
        length: 16
        scale: 0.1
  - id: 2
    name: Aux
    length: 8
    signals:
      - name: AuxTemp
        start: 0
        length: 8
`
	path := filepath.Join(t.TempDir(), "two.yml")
	require.NoError(t, os.WriteFile(path, []byte(twoMessages), 0644))
	reg, err := dictionary.Build([]string{path}, false)
	require.NoError(t, err)

	src := &canlog.SliceSource{Frames: []canlog.Frame{
		driveFrame(0.0, 100, 0),
		{ID: 2, Timestamp: 0.1, Data: []byte{42, 0, 0, 0, 0, 0, 0, 0}},
		driveFrame(0.2, 120, 0),
	}}

	got, stats, err := Load(src, reg, table.DefaultConfig(), LoadOptions{Expected: []string{"SpeedKph"}})
	require.NoError(t, err)

	assert.Equal(t, 2, got.NumRows(), "frames carrying none of the requested signals never become rows")
	assert.Equal(t, []string{"timestamp", "SpeedKph"}, got.ColumnNames())
	assert.Equal(t, int64(1), stats.EmptyRowsDropped)
	assert.Equal(t, int64(2), stats.RowsBuffered)

	ts, _ := got.Column("timestamp")
	assert.Equal(t, []float64{0.0, 0.2}, ts.Floats)
}

func TestLoad_EmptyCapture(t *testing.T) {
	reg := buildTestRegistry(t)
	src := &canlog.SliceSource{}

	got, stats, err := Load(src, reg, table.DefaultConfig(), LoadOptions{})
	require.NoError(t, err)

	assert.Zero(t, stats.ChunksEmitted)
	assert.Equal(t, 0, got.NumRows())
	assert.Equal(t, []string{"timestamp", "SpeedKph", "EngineRPM"}, got.ColumnNames())
}

func TestLoad_DuplicateExpectedFailsBeforeReading(t *testing.T) {
	reg := buildTestRegistry(t)
	src := &canlog.SliceSource{Frames: []canlog.Frame{driveFrame(0.0, 1, 1)}}

	_, _, err := Load(src, reg, table.DefaultConfig(), LoadOptions{Expected: []string{"SpeedKph", "SpeedKph"}})
	require.Error(t, err)
	assert.True(t, apperrors.IsDuplicateName(err))
	assert.True(t, src.Closed)
}

func TestLoad_StreamErrorWrapped(t *testing.T) {
	reg := buildTestRegistry(t)
	readErr := errors.New("bus gone")
	src := &canlog.ErrSource{Frames: []canlog.Frame{driveFrame(0.0, 1, 1)}, Err: readErr}

	_, _, err := Load(src, reg, table.DefaultConfig(), LoadOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsProcessing(err))
	assert.ErrorIs(t, err, readErr, "the original cause stays reachable")
}

func TestLoad_NotFoundPassesThrough(t *testing.T) {
	reg := buildTestRegistry(t)
	src := &canlog.ErrSource{Err: apperrors.NewNotFoundError("capture log trace.log")}

	_, _, err := Load(src, reg, table.DefaultConfig(), LoadOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.False(t, apperrors.IsProcessing(err), "missing inputs are not wrapped")
}
