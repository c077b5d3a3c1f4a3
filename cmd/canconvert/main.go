package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"canmlio/internal/config"
	"canmlio/internal/decode"
	"canmlio/internal/dictionary"
	"canmlio/internal/infrastructure"
	"canmlio/internal/services"
)

func main() {
	dicts := flag.String("dict", "", "comma-separated signal dictionary files (.dbc, .yml)")
	capture := flag.String("capture", "", "candump capture log to decode")
	output := flag.String("out", "", "output dataset path (.csv, .parquet, .xlsx)")
	format := flag.String("format", "", "output format: csv, parquet, xlsx (default: from extension)")
	metadata := flag.String("metadata", "", "write the signal attribute sidecar to this path")
	ids := flag.String("ids", "", "comma-separated message ids to decode (decimal or 0x-prefixed hex)")
	signals := flag.String("signals", "", "comma-separated expected signal columns (default: all)")
	dtypes := flag.String("dtypes", "", "per-signal dtype overrides as name=type pairs")
	chunkSize := flag.Int("chunk-size", 0, "rows per streamed chunk (default: from config)")
	sortTs := flag.Bool("sort", false, "sort rows by timestamp")
	uniform := flag.Bool("uniform-timing", false, "rewrite timestamps to a uniform grid, keeping the original under raw_timestamp")
	interval := flag.Float64("interval", 0, "uniform timing interval in seconds (default: from config)")
	interpolate := flag.Bool("interpolate", false, "linearly interpolate missing known signals")
	namespaced := flag.Bool("namespaced", false, "prefix every signal with its message name")
	compression := flag.String("compression", "", "parquet codec: snappy, gzip, zstd, uncompressed")
	quiet := flag.Bool("quiet", false, "suppress progress output")
	flag.Parse()

	if *dicts == "" || *capture == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "canconvert: -dict, -capture, and -out are required")
		flag.Usage()
		os.Exit(2)
	}

	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	cfg.Logging.FilePath = paths.GetLogPath("canconvert.log")

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	req := services.ConvertRequest{
		Dictionaries:       splitList(*dicts),
		NamespacedNames:    *namespaced,
		Capture:            *capture,
		Output:             *output,
		Format:             *format,
		MetadataPath:       *metadata,
		Compression:        *compression,
		ExpectedSignals:    splitList(*signals),
		ChunkSize:          *chunkSize,
		SortTimestamps:     *sortTs,
		ForceUniformTiming: *uniform,
		IntervalSeconds:    *interval,
		InterpolateMissing: *interpolate,
	}

	if req.MessageIDs, err = parseIDs(*ids); err != nil {
		fmt.Fprintf(os.Stderr, "canconvert: %v\n", err)
		os.Exit(2)
	}
	if req.DTypes, err = parseDTypes(*dtypes); err != nil {
		fmt.Fprintf(os.Stderr, "canconvert: %v\n", err)
		os.Exit(2)
	}

	cache := dictionary.NewCache(cfg.Pipeline.CacheCapacity)
	svc := services.NewConvertService(cfg, paths, cache, logger, nil)

	var reporter decode.Reporter
	if !*quiet {
		reporter = decode.NewLogReporter(logger, 2*time.Second)
	}

	result, err := svc.Convert(context.Background(), req, reporter)
	if err != nil {
		logger.Error("Conversion failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "canconvert: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s (%s): %d rows, %d columns in %s\n",
		result.Output, result.Format, result.Rows, len(result.Columns),
		result.Duration.Round(time.Millisecond))
	if result.Stats.DecodeFailures > 0 {
		fmt.Printf("Dropped %d undecodable frames of %d read\n",
			result.Stats.DecodeFailures, result.Stats.FramesRead)
	}
}

// splitList parses a comma-separated flag, treating empty as unset.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseIDs parses the -ids flag. Base 0 accepts both decimal and
// 0x-prefixed hex.
func parseIDs(s string) ([]uint32, error) {
	var ids []uint32
	for _, part := range splitList(s) {
		id, err := strconv.ParseUint(part, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid message id %q", part)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

// parseDTypes parses the -dtypes flag: "SignalA=int64,SignalB=float64".
func parseDTypes(s string) (map[string]string, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(parts))
	for _, part := range parts {
		name, typeName, ok := strings.Cut(part, "=")
		if !ok || name == "" || typeName == "" {
			return nil, fmt.Errorf("invalid dtype override %q, want name=type", part)
		}
		out[name] = typeName
	}
	return out, nil
}
