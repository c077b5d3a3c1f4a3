package services

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canmlio/internal/config"
	"canmlio/internal/dictionary"
	apperrors "canmlio/internal/errors"
	"canmlio/internal/shared/testutil"
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

const testCapture = `(1700000000.000000) can0 001#6400840300000000
(1700000000.010000) can0 001#6E00840300000000
# a comment line the reader skips
(1700000000.020000) can0 001#7800840300000000
`

type fixture struct {
	dir     string
	dict    string
	capture string
	service *ConvertService
	cache   *dictionary.Cache
	handler *testutil.BufferedSlogHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	dict := filepath.Join(dir, "drive.yml")
	require.NoError(t, os.WriteFile(dict, []byte(testDictionary), 0644))

	capture := filepath.Join(dir, "trace.log")
	require.NoError(t, os.WriteFile(capture, []byte(testCapture), 0644))

	logger, handler := testutil.NewTestLogger(t)
	cache := dictionary.NewCache(4)
	return &fixture{
		dir:     dir,
		dict:    dict,
		capture: capture,
		service: NewConvertService(nil, nil, cache, logger, nil),
		cache:   cache,
		handler: handler,
	}
}

func (f *fixture) request(output string) ConvertRequest {
	return ConvertRequest{
		Dictionaries: []string{f.dict},
		Capture:      f.capture,
		Output:       output,
	}
}

func TestConvert_CSV(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "out.csv")

	result, err := f.service.Convert(context.Background(), f.request(out), nil)
	require.NoError(t, err)

	assert.Equal(t, out, result.Output)
	assert.Equal(t, "csv", result.Format)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, []string{"timestamp", "SpeedKph", "EngineRPM"}, result.Columns)
	assert.Equal(t, int64(3), result.Stats.FramesRead)

	_, err = uuid.Parse(result.RunID)
	assert.NoError(t, err, "run id is a uuid")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "timestamp,SpeedKph,EngineRPM", lines[0])
	assert.Contains(t, lines[1], ",10,900")

	testutil.AssertLogContains(t, f.handler, slog.LevelInfo, "Conversion complete")
}

func TestConvert_FormatInference(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		output string
		want   string
	}{
		{"out.parquet", "parquet"},
		{"out.xlsx", "xlsx"},
		{"out.csv", "csv"},
		{"out.dat", "csv"},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			result, err := f.service.Convert(context.Background(),
				f.request(filepath.Join(f.dir, tt.output)), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Format)
		})
	}
}

func TestConvert_ParquetWithMetadata(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "out.parquet")
	meta := filepath.Join(f.dir, "out.meta.json")

	req := f.request(out)
	req.MetadataPath = meta
	req.Compression = "zstd"

	_, err := f.service.Convert(context.Background(), req, nil)
	require.NoError(t, err)

	for _, path := range []string{out, meta} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}
}

func TestConvert_PipelineOptions(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "uniform.csv")

	req := f.request(out)
	req.ForceUniformTiming = true
	req.IntervalSeconds = 0.5
	req.ExpectedSignals = []string{"SpeedKph"}

	result, err := f.service.Convert(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"timestamp", "SpeedKph", "raw_timestamp"}, result.Columns)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.True(t, strings.HasPrefix(lines[1], "0,"), "timestamps rebased to zero")
	assert.True(t, strings.HasPrefix(lines[2], "0.5,"))
}

func TestConvert_InvalidDType(t *testing.T) {
	f := newFixture(t)
	req := f.request(filepath.Join(f.dir, "x.csv"))
	req.DTypes = map[string]string{"SpeedKph": "complex128"}

	_, err := f.service.Convert(context.Background(), req, nil)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeValidation, appErr.Type)
}

func TestConvert_MissingCapture(t *testing.T) {
	f := newFixture(t)
	req := f.request(filepath.Join(f.dir, "x.csv"))
	req.Capture = filepath.Join(f.dir, "nope.log")

	_, err := f.service.Convert(context.Background(), req, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestConvert_ReusesCachedRegistry(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Convert(context.Background(), f.request(filepath.Join(f.dir, "a.csv")), nil)
	require.NoError(t, err)
	_, err = f.service.Convert(context.Background(), f.request(filepath.Join(f.dir, "b.csv")), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, f.cache.Len(), "both runs share one cached registry")
}

func TestConvert_ResolvesRelativePaths(t *testing.T) {
	base := t.TempDir()
	paths := config.NewPaths(base)
	require.NoError(t, paths.EnsureDirectories())

	require.NoError(t, os.WriteFile(paths.GetDictionaryPath("drive.yml"), []byte(testDictionary), 0644))
	require.NoError(t, os.WriteFile(paths.GetCapturePath("trace.log"), []byte(testCapture), 0644))

	logger, _ := testutil.NewTestLogger(t)
	svc := NewConvertService(nil, paths, dictionary.NewCache(4), logger, nil)

	result, err := svc.Convert(context.Background(), ConvertRequest{
		Dictionaries: []string{"drive.yml"},
		Capture:      "trace.log",
		Output:       "out.csv",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, paths.GetExportPath("out.csv"), result.Output)

	_, err = os.Stat(result.Output)
	assert.NoError(t, err)
}
