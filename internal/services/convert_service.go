package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"canmlio/internal/canlog"
	"canmlio/internal/config"
	"canmlio/internal/decode"
	"canmlio/internal/dictionary"
	apperrors "canmlio/internal/errors"
	"canmlio/internal/exporter"
	"canmlio/internal/infrastructure"
	"canmlio/internal/table"
)

// ConvertService runs capture-to-dataset conversions. The dictionary
// cache is shared with every other consumer and injected by the
// composition root, so repeated runs against the same dictionary set
// skip reparsing.
type ConvertService struct {
	cfg     *config.Config
	paths   *config.Paths
	logger  *slog.Logger
	cache   *dictionary.Cache
	metrics *infrastructure.PipelineMetrics
}

// NewConvertService creates a conversion service.
func NewConvertService(cfg *config.Config, paths *config.Paths, cache *dictionary.Cache, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *ConvertService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConvertService{
		cfg:     cfg,
		paths:   paths,
		logger:  logger,
		cache:   cache,
		metrics: metrics,
	}
}

// ConvertRequest describes one conversion run.
type ConvertRequest struct {
	// Dictionaries are the signal dictionary sources, merged in order.
	Dictionaries []string `json:"dictionaries" validate:"required,min=1,dive,required"`
	// NamespacedNames prefixes every signal with its message name.
	NamespacedNames bool `json:"namespaced_names"`
	// Capture is the CAN log to decode.
	Capture string `json:"capture" validate:"required"`
	// Output is the dataset destination. Relative paths land in the
	// exports directory.
	Output string `json:"output" validate:"required"`
	// Format is csv, parquet, or xlsx. Empty infers from the output
	// extension, defaulting to csv.
	Format string `json:"format" validate:"omitempty,oneof=csv parquet xlsx"`
	// MetadataPath, when set, writes the signal attribute sidecar.
	MetadataPath string `json:"metadata_path"`
	// Compression selects the Parquet codec.
	Compression string `json:"compression" validate:"omitempty,oneof=snappy gzip zstd uncompressed"`

	// MessageIDs restricts decoding to the listed ids.
	MessageIDs []uint32 `json:"message_ids"`
	// ExpectedSignals fixes the output column set.
	ExpectedSignals []string `json:"expected_signals"`
	// DTypes overrides per-signal column types.
	DTypes map[string]string `json:"dtypes"`

	ChunkSize          int     `json:"chunk_size"`
	SortTimestamps     bool    `json:"sort_timestamps"`
	ForceUniformTiming bool    `json:"force_uniform_timing"`
	IntervalSeconds    float64 `json:"interval_seconds"`
	InterpolateMissing bool    `json:"interpolate_missing"`
}

// ConvertResult summarizes a finished run.
type ConvertResult struct {
	RunID    string        `json:"run_id"`
	Output   string        `json:"output"`
	Format   string        `json:"format"`
	Rows     int           `json:"rows"`
	Columns  []string      `json:"columns"`
	Duration time.Duration `json:"duration"`
	Stats    decode.Stats  `json:"stats"`
}

// Convert runs one capture-to-dataset conversion end to end: build or
// reuse the dictionary registry, stream-decode the capture, assemble
// the table, and export it. Progress, when a reporter is given, is
// emitted per chunk.
func (s *ConvertService) Convert(ctx context.Context, req ConvertRequest, reporter decode.Reporter) (result *ConvertResult, err error) {
	runID := uuid.NewString()
	ctx = infrastructure.WithRunID(ctx, runID)
	log := s.logger.With(slog.String("run_id", runID))
	start := time.Now()

	format := s.resolveFormat(req)
	defer func() {
		infrastructure.RecordConversion(ctx, s.metrics, format, time.Since(start), err)
	}()

	log.InfoContext(ctx, "Conversion started",
		slog.String("capture", req.Capture),
		slog.String("output", req.Output),
		slog.String("format", format),
		slog.Int("dictionaries", len(req.Dictionaries)))

	tblCfg, err := s.pipelineConfig(req)
	if err != nil {
		return nil, err
	}

	reg, err := s.cache.Build(s.resolveDictionaries(req.Dictionaries), req.NamespacedNames)
	if err != nil {
		return nil, err
	}

	src, err := canlog.Open(s.resolveCapture(req.Capture))
	if err != nil {
		return nil, err
	}

	tbl, stats, err := decode.Load(src, reg, tblCfg, decode.LoadOptions{
		IDs:      req.MessageIDs,
		Expected: req.ExpectedSignals,
		Reporter: reporter,
	})
	s.recordStats(ctx, stats)
	if err != nil {
		log.ErrorContext(ctx, "Conversion failed", slog.String("error", err.Error()))
		return nil, err
	}

	output, err := s.export(tbl, format, req)
	if err != nil {
		log.ErrorContext(ctx, "Export failed", slog.String("error", err.Error()))
		return nil, err
	}

	result = &ConvertResult{
		RunID:    runID,
		Output:   output,
		Format:   format,
		Rows:     tbl.NumRows(),
		Columns:  tbl.ColumnNames(),
		Duration: time.Since(start),
		Stats:    stats,
	}
	log.InfoContext(ctx, "Conversion complete",
		slog.Int("rows", result.Rows),
		slog.Int("columns", len(result.Columns)),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// pipelineConfig builds the pipeline options from the request, falling
// back to the configured defaults.
func (s *ConvertService) pipelineConfig(req ConvertRequest) (*table.Config, error) {
	cfg := table.DefaultConfig()
	if s.cfg != nil {
		cfg.ChunkSize = s.cfg.Pipeline.ChunkSize
		cfg.IntervalSeconds = s.cfg.Pipeline.IntervalSeconds
	}
	if req.ChunkSize > 0 {
		cfg.ChunkSize = req.ChunkSize
	}
	if req.IntervalSeconds > 0 {
		cfg.IntervalSeconds = req.IntervalSeconds
	}
	cfg.SortTimestamps = req.SortTimestamps
	cfg.ForceUniformTiming = req.ForceUniformTiming
	cfg.InterpolateMissing = req.InterpolateMissing

	if len(req.DTypes) > 0 {
		cfg.DTypeMap = make(map[string]table.DType, len(req.DTypes))
		for name, typeName := range req.DTypes {
			dt, err := table.ParseDType(typeName)
			if err != nil {
				return nil, apperrors.NewValidationError(
					fmt.Sprintf("signal %s: %v", name, err))
			}
			cfg.DTypeMap[name] = dt
		}
	}
	return cfg, cfg.Validate()
}

// resolveFormat infers the export format from the request.
func (s *ConvertService) resolveFormat(req ConvertRequest) string {
	if req.Format != "" {
		return req.Format
	}
	switch strings.ToLower(filepath.Ext(req.Output)) {
	case ".parquet":
		return "parquet"
	case ".xlsx":
		return "xlsx"
	default:
		return "csv"
	}
}

// export writes the assembled table in the requested format and returns
// the resolved output path.
func (s *ConvertService) export(tbl *table.Table, format string, req ConvertRequest) (string, error) {
	switch format {
	case "csv":
		w := exporter.NewCSVWriter(s.paths)
		opts := exporter.CSVOptions{MetadataPath: s.resolveMetadata(req.MetadataPath)}
		if err := w.WriteTable(req.Output, tbl, opts); err != nil {
			return "", err
		}
		return s.resolveExport(req.Output), nil
	case "parquet":
		out := s.resolveExport(req.Output)
		err := exporter.WriteParquet(out, tbl, exporter.ParquetOptions{
			Compression:  req.Compression,
			MetadataPath: s.resolveMetadata(req.MetadataPath),
		})
		return out, err
	case "xlsx":
		out := s.resolveExport(req.Output)
		if err := exporter.WriteExcel(out, tbl); err != nil {
			return "", err
		}
		if req.MetadataPath != "" {
			if err := exporter.WriteMetadata(s.resolveMetadata(req.MetadataPath), tbl); err != nil {
				return "", err
			}
		}
		return out, nil
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("unsupported format: %s", format))
	}
}

// recordStats feeds the streaming counters into the pipeline metrics.
func (s *ConvertService) recordStats(ctx context.Context, st decode.Stats) {
	if s.metrics == nil {
		return
	}
	s.metrics.FramesRead.Add(ctx, st.FramesRead)
	s.metrics.FramesFiltered.Add(ctx, st.FramesFiltered)
	s.metrics.DecodeFailures.Add(ctx, st.DecodeFailures)
	s.metrics.RowsBuffered.Add(ctx, st.RowsBuffered)
	s.metrics.ChunksEmitted.Add(ctx, st.ChunksEmitted)
}

func (s *ConvertService) resolveDictionaries(sources []string) []string {
	if s.paths == nil {
		return sources
	}
	resolved := make([]string, len(sources))
	for i, src := range sources {
		if filepath.IsAbs(src) {
			resolved[i] = src
		} else {
			resolved[i] = s.paths.GetDictionaryPath(src)
		}
	}
	return resolved
}

func (s *ConvertService) resolveCapture(path string) string {
	if s.paths == nil || filepath.IsAbs(path) {
		return path
	}
	return s.paths.GetCapturePath(path)
}

func (s *ConvertService) resolveExport(path string) string {
	if s.paths == nil || filepath.IsAbs(path) {
		return path
	}
	return s.paths.GetExportPath(path)
}

func (s *ConvertService) resolveMetadata(path string) string {
	if path == "" || s.paths == nil || filepath.IsAbs(path) {
		return path
	}
	return s.paths.GetMetadataPath(path)
}
