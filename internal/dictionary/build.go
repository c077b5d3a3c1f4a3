package dictionary

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "canmlio/internal/errors"
)

// Build merges the given dictionary sources into one Registry.
//
// Every source must exist and parse; a missing path is a not-found
// error and malformed content is a format error. With namespaced false,
// any signal name appearing in more than one place across the merged
// set is a duplicate-name error listing all collisions. With namespaced
// true, message names must be unique (duplicate-name error otherwise)
// and every signal is renamed to "{message}_{signal}", which guarantees
// a unique flattened index.
func Build(sources []string, namespaced bool) (*Registry, error) {
	if len(sources) == 0 {
		return nil, apperrors.NewValidationError("at least one dictionary source must be provided")
	}

	var messages []*MessageDef
	for _, src := range sources {
		parsed, err := parseSource(src)
		if err != nil {
			return nil, err
		}
		messages = append(messages, parsed...)
	}

	if namespaced {
		if dupes := duplicateMessageNames(messages); len(dupes) > 0 {
			return nil, apperrors.NewDuplicateNameError("message", dupes)
		}
		for _, msg := range messages {
			for _, sig := range msg.Signals {
				sig.Name = fmt.Sprintf("%s_%s", msg.Name, sig.Name)
			}
		}
	} else {
		if dupes := duplicateSignalNames(messages); len(dupes) > 0 {
			return nil, apperrors.NewDuplicateNameError("signal", dupes)
		}
	}

	reg := newRegistry(messages)
	slog.Debug("Dictionary registry built",
		slog.Int("sources", len(sources)),
		slog.Int("messages", len(messages)),
		slog.Int("signals", len(reg.order)),
		slog.Bool("namespaced", namespaced))
	return reg, nil
}

// parseSource dispatches on the source file extension.
func parseSource(path string) ([]*MessageDef, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("dictionary file %s", path))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".dbc":
		return parseDBC(path)
	case ".yml", ".yaml":
		return parseYAML(path)
	default:
		return nil, apperrors.NewFormatError(
			fmt.Sprintf("unsupported dictionary format %q (want .dbc, .yml or .yaml)", filepath.Ext(path)), nil)
	}
}

func duplicateSignalNames(messages []*MessageDef) []string {
	counts := make(map[string]int)
	for _, msg := range messages {
		for _, sig := range msg.Signals {
			counts[sig.Name]++
		}
	}
	var dupes []string
	for name, n := range counts {
		if n > 1 {
			dupes = append(dupes, name)
		}
	}
	return dupes
}

func duplicateMessageNames(messages []*MessageDef) []string {
	counts := make(map[string]int)
	for _, msg := range messages {
		counts[msg.Name]++
	}
	var dupes []string
	for name, n := range counts {
		if n > 1 {
			dupes = append(dupes, name)
		}
	}
	return dupes
}
