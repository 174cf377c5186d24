package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/webitel/im-tag-router/config"
	"github.com/webitel/im-tag-router/internal/domain/registry"
	"github.com/webitel/im-tag-router/internal/service"
)

func TestNewWSHandlerFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Router.SendBuffer = 4
	cfg.Router.MaxMessageBytes = 2048
	cfg.Server.WriteWait = 3 * time.Second
	cfg.Server.PongWait = 7 * time.Second

	router := service.NewConnectionRouter(registry.NewHub(), nil, discardLogger())
	h := NewWSHandlerFromConfig(cfg, discardLogger(), router)

	assert.Equal(t, 4, h.sendBuffer)
	assert.Equal(t, int64(2048), h.readLimit)
	assert.Equal(t, 3*time.Second, h.writeWait)
	assert.Equal(t, 7*time.Second, h.pongWait)
}

func TestNewWSHandler_IgnoresNonPositiveOptions(t *testing.T) {
	h := NewWSHandler(discardLogger(), nil, WithReadLimit(0), WithPongWait(0), WithWriteWait(-1))

	assert.Equal(t, int64(defaultReadLimit), h.readLimit)
	assert.Equal(t, defaultPongWait, h.pongWait)
	assert.Equal(t, defaultWriteWait, h.writeWait)
}
