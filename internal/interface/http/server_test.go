package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChatSift/Social/internal/application/query"
	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/domain/shared"
	"github.com/ChatSift/Social/internal/interface/http/handlers"
	"github.com/ChatSift/Social/pkg/logger"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubLevels struct {
	dto *query.LevelDTO
	err error
}

func (s stubLevels) Handle(_ context.Context, q query.GetLevelQuery) (*query.LevelDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	dto := *s.dto
	dto.GuildID, dto.UserID = q.GuildID, q.UserID
	return &dto, nil
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	health := handlers.NewCompositeHealthChecker("test")
	var redisErr error
	health.AddCheck("postgres", handlers.PingCheck(pingFunc(func(context.Context) error { return nil })))
	health.AddCheck("redis", func(context.Context) error { return redisErr })

	h := NewServer(DefaultConfig(), Dependencies{Health: health, Logger: logger.Discard()}).Handler()

	assert.Equal(t, http.StatusOK, serve(t, h, "/healthz").Code)

	rec := serve(t, h, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	redisErr = errors.New("connection refused")
	rec = serve(t, h, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Healthy)
	assert.Equal(t, handlers.StatusDown, status.Status)
	assert.True(t, status.Checks["postgres"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.Equal(t, "Some checks failed: redis", status.Message)
}

func TestLevelEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	levels := stubLevels{dto: &query.LevelDTO{
		Level:           2,
		XP:              200,
		Progress:        50,
		RequiredForNext: 100,
		CurrentRewards:  []leveling.Reward{{RoleID: "r1", Level: 1}},
		NextRewards:     []leveling.Reward{},
	}}
	h := NewServer(DefaultConfig(), Dependencies{Levels: levels, Logger: logger.Discard()}).Handler()

	rec := serve(t, h, "/v1/guilds/1/members/2/level")
	require.Equal(t, http.StatusOK, rec.Code)

	var body levelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.Level)
	assert.Equal(t, int64(50), body.Progress)
	assert.Equal(t, []rewardResponse{{RoleID: "r1", Level: 1}}, body.CurrentRewards)
	assert.Empty(t, body.NextRewards)
}

func TestLevelEndpoint_Errors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err  error
		code int
	}{
		{leveling.ErrSettingsNotFound, http.StatusNotFound},
		{shared.NewDomainError("leveling", "GetLevel", shared.ErrPartialConfiguration, "partial"), http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := NewServer(DefaultConfig(), Dependencies{Levels: stubLevels{err: tt.err}, Logger: logger.Discard()}).Handler()
		assert.Equal(t, tt.code, serve(t, h, "/v1/guilds/1/members/2/level").Code, tt.err.Error())
	}

	// Not mounted without a level reader.
	h := NewServer(DefaultConfig(), Dependencies{Logger: logger.Discard()}).Handler()
	assert.Equal(t, http.StatusNotFound, serve(t, h, "/v1/guilds/1/members/2/level").Code)
}

type levelSettings struct{}

func (levelSettings) Get(_ context.Context, guildID string) (*leveling.SettingsRecord, error) {
	one, gain, base, mult := int64(1), int64(10), int64(100), int64(50)
	return &leveling.SettingsRecord{
		GuildID:                 guildID,
		RequiredMessages:        &one,
		XPGain:                  &gain,
		RequiredXPBase:          &base,
		RequiredXPMultiplier:    &mult,
		LevelUpNotificationMode: "None",
	}, nil
}

func (levelSettings) ClearFallbackChannel(context.Context, string) error { return nil }

// recordingProgress has no members and records every write it receives.
type recordingProgress struct {
	writes []string
}

func (p *recordingProgress) Find(context.Context, string, string) (*leveling.UserProgress, error) {
	return nil, shared.NewDomainError("leveling", "FindProgress", shared.ErrNotFound, "no such user")
}

func (p *recordingProgress) Ensure(_ context.Context, _, userID string) (*leveling.UserProgress, error) {
	p.writes = append(p.writes, userID)
	return &leveling.UserProgress{}, nil
}

func (p *recordingProgress) IncrementXP(_ context.Context, _, userID string, _ int64) (int64, error) {
	p.writes = append(p.writes, userID)
	return 0, nil
}

type noRewards struct{}

func (noRewards) ListByGuild(context.Context, string) ([]leveling.Reward, error) { return nil, nil }

func TestLevelEndpoint_ReadOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	progress := &recordingProgress{}
	levels := query.NewGetLevelHandler(levelSettings{}, progress, noRewards{})
	h := NewServer(DefaultConfig(), Dependencies{Levels: levels, Logger: logger.Discard()}).Handler()

	rec := serve(t, h, "/v1/guilds/100/members/4242/level")
	require.Equal(t, http.StatusOK, rec.Code)

	var body levelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(0), body.XP)
	assert.Equal(t, int64(0), body.Level)
	assert.Equal(t, int64(100), body.RequiredForNext)

	for _, path := range []string{
		"/v1/guilds/100/members/not-a-snowflake/level",
		"/v1/guilds/100/members/x/level",
		"/v1/guilds/general/members/4242/level",
	} {
		assert.Equal(t, http.StatusBadRequest, serve(t, h, path).Code, path)
	}
	assert.Empty(t, progress.writes)
}
