package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canmlio/internal/dictionary"
	apperrors "canmlio/internal/errors"
	"canmlio/internal/shared/testutil"
)

func TestDictionaryService_Inspect(t *testing.T) {
	dir := t.TempDir()
	dict := filepath.Join(dir, "drive.yml")
	require.NoError(t, os.WriteFile(dict, []byte(testDictionary), 0644))

	logger, _ := testutil.NewTestLogger(t)
	svc := NewDictionaryService(nil, dictionary.NewCache(4), logger)

	summary, err := svc.Inspect(context.Background(), []string{dict}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{dict}, summary.Sources)
	assert.Equal(t, 2, summary.SignalCount)
	require.Len(t, summary.Messages, 1)

	msg := summary.Messages[0]
	assert.Equal(t, uint32(1), msg.ID)
	assert.Equal(t, "Drive", msg.Name)
	require.Len(t, msg.Signals, 2)
	assert.Equal(t, "SpeedKph", msg.Signals[0].Name)
	assert.Equal(t, 0.1, msg.Signals[0].Scale)
}

func TestDictionaryService_MissingSource(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	svc := NewDictionaryService(nil, dictionary.NewCache(4), logger)

	_, err := svc.Inspect(context.Background(), []string{filepath.Join(t.TempDir(), "nope.dbc")}, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
