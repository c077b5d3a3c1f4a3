package services

import (
	"context"
	"log/slog"
	"path/filepath"

	"canmlio/internal/config"
	"canmlio/internal/dictionary"
)

// DictionaryService answers questions about signal dictionaries without
// decoding anything. It shares the registry cache with the converter.
type DictionaryService struct {
	paths  *config.Paths
	logger *slog.Logger
	cache  *dictionary.Cache
}

// NewDictionaryService creates a dictionary inspection service.
func NewDictionaryService(paths *config.Paths, cache *dictionary.Cache, logger *slog.Logger) *DictionaryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DictionaryService{paths: paths, logger: logger, cache: cache}
}

// SignalSummary is one signal's public description.
type SignalSummary struct {
	Name    string   `json:"name"`
	Length  uint     `json:"length"`
	Signed  bool     `json:"signed"`
	Scale   float64  `json:"scale"`
	Offset  float64  `json:"offset"`
	Unit    string   `json:"unit,omitempty"`
	Choices []string `json:"choices,omitempty"`
}

// MessageSummary is one message's public description.
type MessageSummary struct {
	ID      uint32          `json:"id"`
	Name    string          `json:"name"`
	Length  int             `json:"length"`
	Signals []SignalSummary `json:"signals"`
}

// DictionarySummary is the merged view over a dictionary source set.
type DictionarySummary struct {
	Sources     []string         `json:"sources"`
	Messages    []MessageSummary `json:"messages"`
	SignalCount int              `json:"signal_count"`
}

// Inspect builds (or reuses) the registry for the source set and
// returns its flattened description.
func (s *DictionaryService) Inspect(ctx context.Context, sources []string, namespaced bool) (*DictionarySummary, error) {
	resolved := make([]string, len(sources))
	for i, src := range sources {
		if s.paths == nil || filepath.IsAbs(src) {
			resolved[i] = src
		} else {
			resolved[i] = s.paths.GetDictionaryPath(src)
		}
	}

	reg, err := s.cache.Build(resolved, namespaced)
	if err != nil {
		return nil, err
	}

	summary := &DictionarySummary{Sources: resolved}
	for _, msg := range reg.Messages {
		ms := MessageSummary{ID: msg.ID, Name: msg.Name, Length: msg.Length}
		for _, sig := range msg.Signals {
			ms.Signals = append(ms.Signals, SignalSummary{
				Name:    sig.Name,
				Length:  sig.Length,
				Signed:  sig.Signed,
				Scale:   sig.Scale,
				Offset:  sig.Offset,
				Unit:    sig.Unit,
				Choices: sig.Labels(),
			})
			summary.SignalCount++
		}
		summary.Messages = append(summary.Messages, ms)
	}

	s.logger.DebugContext(ctx, "Dictionary inspected",
		slog.Int("messages", len(summary.Messages)),
		slog.Int("signals", summary.SignalCount))
	return summary, nil
}
