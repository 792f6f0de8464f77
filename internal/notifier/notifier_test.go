package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"qd-market-sentry/internal/store"
	"qd-market-sentry/pkg/types"
)

// memoryInbox 收件箱的内存替身
type memoryInbox struct {
	rows []*store.InboxNotification
	err  error
}

func (m *memoryInbox) InsertInbox(n *store.InboxNotification) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, n)
	return nil
}

func signalPayload() *types.SignalPayload {
	return &types.SignalPayload{
		Event:      "qd.signal",
		Version:    1,
		Timestamp:  1767225600,
		Strategy:   "demo",
		Market:     types.MarketCrypto,
		Symbol:     "BTC/USDT",
		SignalType: "open_long",
		RefPrice:   65000,
	}
}

func TestDispatchBrowser(t *testing.T) {
	inbox := &memoryInbox{}
	d := NewDispatcher(types.NotifyConfig{}, inbox)

	results := d.Dispatch(context.Background(), []string{"browser"},
		&types.ChannelTargets{UserID: 7}, signalPayload())

	require.Contains(t, results, "browser")
	assert.True(t, results["browser"].OK)
	require.Len(t, inbox.rows, 1)
	assert.Equal(t, int64(7), inbox.rows[0].UserID)
	assert.Equal(t, "QD Signal | BTC/USDT | OPEN LONG", inbox.rows[0].Title)
	assert.Equal(t, "alert", inbox.rows[0].Category)
}

func TestDispatchEmptyChannels(t *testing.T) {
	d := NewDispatcher(types.NotifyConfig{}, &memoryInbox{})
	results := d.Dispatch(context.Background(), nil, nil, signalPayload())
	assert.Empty(t, results)
}

func TestDispatchUnsupportedChannel(t *testing.T) {
	d := NewDispatcher(types.NotifyConfig{}, &memoryInbox{})
	results := d.Dispatch(context.Background(), []string{"pigeon"}, nil, signalPayload())

	require.Contains(t, results, "pigeon")
	assert.False(t, results["pigeon"].OK)
	assert.Equal(t, "unsupported_channel:pigeon", results["pigeon"].Error)
}

func TestDispatchPartialOutcome(t *testing.T) {
	// webhook指向失效地址，browser正常，两个结果都应出现
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	inbox := &memoryInbox{}
	d := NewDispatcher(types.NotifyConfig{}, inbox)

	results := d.Dispatch(context.Background(), []string{"browser", "webhook"},
		&types.ChannelTargets{UserID: 1, WebhookURL: server.URL}, signalPayload())

	require.Len(t, results, 2)
	assert.True(t, results["browser"].OK)
	assert.False(t, results["webhook"].OK)
	assert.Contains(t, results["webhook"].Error, "http_400")
}

func TestWebhookMissingURL(t *testing.T) {
	d := NewDispatcher(types.NotifyConfig{}, nil)

	ok, errMsg := d.notifyWebhook(context.Background(), &types.ChannelTargets{}, signalPayload())
	assert.False(t, ok)
	assert.Equal(t, "missing_webhook_url", errMsg)

	ok, errMsg = d.notifyWebhook(context.Background(),
		&types.ChannelTargets{WebhookURL: "ftp://example.com"}, signalPayload())
	assert.False(t, ok)
	assert.Equal(t, "invalid_webhook_url", errMsg)
}

func TestWebhookSignature(t *testing.T) {
	const secret = "test-secret"

	var gotTS, gotSig string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTS = r.Header.Get("X-QD-Timestamp")
		gotSig = r.Header.Get("X-QD-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher(types.NotifyConfig{WebhookSecret: secret}, nil)
	ok, errMsg := d.notifyWebhook(context.Background(),
		&types.ChannelTargets{WebhookURL: server.URL, WebhookToken: "tok"}, signalPayload())

	require.True(t, ok, errMsg)
	require.NotEmpty(t, gotTS)
	require.NotEmpty(t, gotSig)

	// 下游用收到的原始字节即可验签
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gotTS + "."))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestWebhookRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher(types.NotifyConfig{}, nil)
	ok, errMsg := d.notifyWebhook(context.Background(),
		&types.ChannelTargets{WebhookURL: server.URL}, signalPayload())

	assert.True(t, ok, errMsg)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWebhookNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	d := NewDispatcher(types.NotifyConfig{}, nil)
	ok, _ := d.notifyWebhook(context.Background(),
		&types.ChannelTargets{WebhookURL: server.URL}, signalPayload())

	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTelegramMissingConfig(t *testing.T) {
	d := NewDispatcher(types.NotifyConfig{}, nil)
	rendered := Render(signalPayload())

	ok, errMsg := d.notifyTelegram(context.Background(), &types.ChannelTargets{}, rendered)
	assert.False(t, ok)
	assert.Equal(t, "missing_telegram_bot_token (请在个人中心配置 Telegram Bot Token)", errMsg)

	ok, errMsg = d.notifyTelegram(context.Background(),
		&types.ChannelTargets{TelegramToken: "123:abc"}, rendered)
	assert.False(t, ok)
	assert.Equal(t, "missing_telegram_chat_id", errMsg)
}

func TestDiscordMissingURL(t *testing.T) {
	d := NewDispatcher(types.NotifyConfig{}, nil)
	ok, errMsg := d.notifyDiscord(context.Background(), &types.ChannelTargets{},
		Render(signalPayload()), signalPayload())

	assert.False(t, ok)
	assert.Equal(t, "missing_discord_webhook_url", errMsg)
}

func TestDiscordEmbedColorAndFallback(t *testing.T) {
	var bodies [][]byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, body)
		// embed被拒，纯文本放行
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDispatcher(types.NotifyConfig{}, nil)
	payload := signalPayload()
	ok, errMsg := d.notifyDiscord(context.Background(),
		&types.ChannelTargets{DiscordWebhook: server.URL}, Render(payload), payload)

	require.True(t, ok, errMsg)
	require.Len(t, bodies, 2)
	// open信号的embed是绿色
	assert.Contains(t, string(bodies[0]), `"color":3066993`)
	assert.Contains(t, string(bodies[1]), "QuantDinger Signal")
}

func TestDiscordFallbackAfterTransportError(t *testing.T) {
	// 首次请求在传输层断开，降级的纯文本请求仍要发出
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDispatcher(types.NotifyConfig{}, nil)
	payload := signalPayload()
	ok, errMsg := d.notifyDiscord(context.Background(),
		&types.ChannelTargets{DiscordWebhook: server.URL}, Render(payload), payload)

	require.True(t, ok, errMsg)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEmailMissingConfig(t *testing.T) {
	d := NewDispatcher(types.NotifyConfig{}, nil)
	rendered := Render(signalPayload())

	ok, errMsg := d.notifyEmail(&types.ChannelTargets{}, rendered)
	assert.False(t, ok)
	assert.Equal(t, "missing_email_target", errMsg)

	ok, errMsg = d.notifyEmail(&types.ChannelTargets{Email: "a@b.com"}, rendered)
	assert.False(t, ok)
	assert.Equal(t, "missing_SMTP_HOST", errMsg)
}

func TestPhoneMissingConfig(t *testing.T) {
	d := NewDispatcher(types.NotifyConfig{}, nil)
	rendered := Render(signalPayload())

	ok, errMsg := d.notifyPhone(context.Background(), &types.ChannelTargets{}, rendered)
	assert.False(t, ok)
	assert.Equal(t, "missing_phone_target", errMsg)

	ok, errMsg = d.notifyPhone(context.Background(), &types.ChannelTargets{Phone: "+10000000000"}, rendered)
	assert.False(t, ok)
	assert.Contains(t, errMsg, "missing_twilio_credentials")
}

func TestHTTPErrorTruncates(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	msg := httpError(502, long)
	assert.Equal(t, 300+len("http_502:"), len(msg))
	assert.Contains(t, msg, "http_502:")
}
