package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChatSift/Social/config"
	"github.com/ChatSift/Social/internal/infrastructure/persistence/postgres"
	"github.com/ChatSift/Social/pkg/retry"
)

func TestOpenPostgres_MalformedURLIsNotRetried(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"DATABASE_URL":         "postgres://%zz",
		"STARTUP_MAX_ATTEMPTS": "5",
	})
	require.NoError(t, err)

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	conn, err := openPostgres(context.Background(), cfg, log)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, postgres.ErrInvalidConfig)
	assert.NotContains(t, logs.String(), "not reachable yet")
}

func TestDialOptions_BoundedByStartupAttempts(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"STARTUP_MAX_ATTEMPTS": "2"})
	require.NoError(t, err)

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	calls := 0
	opts := append(dialOptions(cfg, log, "redis"), retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(time.Millisecond))
	err = retry.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	}, opts...)

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, logs.String(), "redis not reachable yet")
}
