package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndRecent(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := r.Record(ctx, Entry{
			AppliedAt:    base.Add(time.Duration(i) * time.Minute),
			ChangedPaths: []string{"image.tag"},
			SkippedPaths: []string{"image.repository"},
			CommitSHA:    "abc123",
		})
		require.NoError(t, err)
	}

	entries, err := r.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.True(t, entries[0].AppliedAt.After(entries[1].AppliedAt))
	assert.Equal(t, []string{"image.tag"}, entries[0].ChangedPaths)
	assert.Equal(t, []string{"image.repository"}, entries[0].SkippedPaths)
	assert.Equal(t, "abc123", entries[0].CommitSHA)
}

func TestRecentEmptyLog(t *testing.T) {
	r := openTestRecorder(t)

	entries, err := r.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordDefaultsAppliedAt(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, Entry{ChangedPaths: []string{"a"}, SkippedPaths: []string{}}))

	entries, err := r.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.WithinDuration(t, time.Now().UTC(), entries[0].AppliedAt, time.Minute)
}
