package stream

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"qd-market-sentry/pkg/types"
)

func TestConnectDoesNotMutateDefaultDialer(t *testing.T) {
	require.Nil(t, websocket.DefaultDialer.Proxy)

	c := NewClient(types.StreamConfig{
		Enabled:  true,
		Endpoint: "ws://127.0.0.1:1/ws",
		Symbols:  []string{"BTCUSDT"},
	}, "http://127.0.0.1:2", nil)
	defer c.Stop()

	err := c.connect()
	assert.Error(t, err)
	// 代理只配置在本次连接的Dialer副本上，包级默认实例保持干净
	assert.Nil(t, websocket.DefaultDialer.Proxy)
}
