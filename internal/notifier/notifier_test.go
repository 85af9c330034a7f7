package notifier

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"sigfuse/internal/types"
)

func alertSignal() types.Signal {
	return types.Signal{
		ID:          "sig-1",
		Symbol:      "BTC/USDT",
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Direction:   types.DirectionLong,
		Score:       71.3,
		Confidence:  types.ConfidenceHigh,
		Tier:        types.TierGold,
		EntryPrice:  43210.5,
		PhaseScores: []types.PhaseScore{
			{Phase: types.PhaseDiscovery, Value: 78.1, InputsUsed: []string{"binance_futures", "coingecko"}},
			{Phase: types.PhaseSocial, Value: types.NeutralScore, InputsMissing: []string{"alternative_me"}},
		},
		Reasons: []string{
			"discovery: ema_trend +6.10 (phase +14.05)",
			"social: no usable data, neutral baseline",
		},
	}
}

func TestFormatSignal(t *testing.T) {
	msg := FormatSignal(alertSignal())
	body := msg.RenderMarkdown()

	assert.Contains(t, body, "BTC/USDT LONG")
	assert.Contains(t, body, "score 71.30")
	assert.Contains(t, body, "tier gold")
	assert.Contains(t, body, "discovery: 78.10 (2/2 sources)")
	assert.Contains(t, body, "social: no data")
	assert.Contains(t, body, "ema_trend")
}

func TestFormatSignalFlagsLowReliability(t *testing.T) {
	sig := alertSignal()
	sig.PhaseScores[0].LowReliability = true
	body := FormatSignal(sig).RenderMarkdown()
	assert.Contains(t, body, "⚠")
}

func TestRenderMarkdownTrimsLongBody(t *testing.T) {
	long := StructuredMessage{
		Title:    "spam",
		Sections: []MessageSection{{Title: "x", Lines: []string{strings.Repeat("a", 5000)}}},
	}
	body := long.RenderMarkdown()
	assert.LessOrEqual(t, len(body), maxStructuredMessageLen+3)
	assert.True(t, strings.HasSuffix(body, "..."))
}

func TestTelegramSendText(t *testing.T) {
	var gotBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottoken/sendMessage", r.URL.Path)
		buf, _ := io.ReadAll(r.Body)
		gotBody.Store(string(buf))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("token", "chat-42")
	tg.BaseURL = srv.URL
	require.NoError(t, tg.SendText("hello"))

	body := gotBody.Load().(string)
	assert.Equal(t, "chat-42", gjson.Get(body, "chat_id").String())
	assert.Equal(t, "hello", gjson.Get(body, "text").String())
}

func TestTelegramRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tg := NewTelegram("token", "chat")
	tg.BaseURL = srv.URL
	tg.retryDelay = time.Millisecond

	err := tg.SendText("hello")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTelegramRequiresCredentials(t *testing.T) {
	tg := NewTelegram("", "")
	assert.Error(t, tg.SendText("hello"))
}

type recordingSink struct {
	mu   sync.Mutex
	got  []StructuredMessage
	err  error
	sent chan struct{}
}

func (r *recordingSink) SendStructured(msg StructuredMessage) error {
	r.mu.Lock()
	r.got = append(r.got, msg)
	r.mu.Unlock()
	if r.sent != nil {
		r.sent <- struct{}{}
	}
	return r.err
}

func TestDispatcherDelivers(t *testing.T) {
	sink := &recordingSink{sent: make(chan struct{}, 1)}
	d := NewDispatcher(sink, 4)
	d.Start()
	defer d.Stop()

	d.Enqueue(alertSignal())

	select {
	case <-sink.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not delivered")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.got, 1)
	assert.Contains(t, sink.got[0].Title, "BTC/USDT")
}

func TestDispatcherEnqueueNeverBlocks(t *testing.T) {
	// No worker started: the queue fills up and overflow is dropped.
	d := NewDispatcher(&recordingSink{}, 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Enqueue(alertSignal())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestDispatcherToleratesSinkFailure(t *testing.T) {
	sink := &recordingSink{err: assert.AnError, sent: make(chan struct{}, 2)}
	d := NewDispatcher(sink, 4)
	d.Start()
	defer d.Stop()

	d.Enqueue(alertSignal())
	d.Enqueue(alertSignal())

	for i := 0; i < 2; i++ {
		select {
		case <-sink.sent:
		case <-time.After(2 * time.Second):
			t.Fatal("delivery stopped after a sink failure")
		}
	}
}
