package schedule

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRunsJob(t *testing.T) {
	ran := make(chan struct{}, 1)
	stop, err := Start(context.Background(), "@every 1s", "Asia/Dhaka", slog.New(slog.NewTextHandler(io.Discard, nil)), func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)
	defer stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestStartRejectsBadInput(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := Start(context.Background(), "not a spec", "UTC", logger, func(context.Context) error { return nil })
	assert.Error(t, err)

	_, err = Start(context.Background(), "0 9 * * *", "Nowhere/Zone", logger, func(context.Context) error { return nil })
	assert.Error(t, err)
}
