package history

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSweeper_RemovesExpiredArchives(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleArchive("exec-old", time.Now().Add(-48*time.Hour))))
	require.NoError(t, store.Save(ctx, sampleArchive("exec-fresh", time.Now())))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewSweeper(logger, store, 24*time.Hour)

	sweeper.sweep(ctx)

	_, err := store.Get(ctx, "exec-old")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "exec-fresh")
	require.NoError(t, err)
}

func TestSweeper_RejectsBadSchedule(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewSweeper(logger, NewMemoryStore(), time.Hour)

	require.Error(t, sweeper.Start(context.Background(), "not a schedule"))
}
