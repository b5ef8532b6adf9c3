package main

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-chat/internal/auth"
	"github.com/fathima-sithara/realtime-chat/internal/config"
	"github.com/fathima-sithara/realtime-chat/internal/service"
)

func TestDefaultConfigAcceptsSeededUsers(t *testing.T) {
	cfg, err := config.Load("../config.yaml")
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Storage.Driver)

	log := zap.NewNop().Sugar()
	st, err := openStore(context.Background(), cfg, log)
	require.NoError(t, err)

	jv, err := newValidator(cfg.JWT)
	require.NoError(t, err)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(cfg.JWT.HSSecret))
	require.NoError(t, err)

	id, ok := auth.NewResolver(jv, st, cfg.App.MediaBaseURL, log).Resolve(context.Background(), tok)
	require.True(t, ok)
	assert.Equal(t, int64(7), id.ID)
	assert.Equal(t, "Alice Member", id.DisplayName)

	room, err := service.NewAuthorizer(st).Authorize(context.Background(), 42, id)
	require.NoError(t, err)
	assert.Equal(t, int64(9), room.TrainerID)
}
