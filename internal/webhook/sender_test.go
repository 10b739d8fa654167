package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dinehub/printrouter/internal/config"
	"github.com/dinehub/printrouter/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type rawPayload struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

type received struct {
	payload   rawPayload
	signature string
	event     string
}

func TestSenderDeliversSignedEvent(t *testing.T) {
	var mu sync.Mutex
	var got []received

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p rawPayload
		require.NoError(t, json.Unmarshal(body, &p))
		mu.Lock()
		got = append(got, received{
			payload:   p,
			signature: r.Header.Get("X-Webhook-Signature"),
			event:     r.Header.Get("X-Webhook-Event"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender([]config.WebhookEndpoint{
		{URL: srv.URL, Secret: "topsecret", Events: []string{core.EventJobFailed}},
	}, testLogger())
	s.Start()
	defer s.Stop()

	job := &core.Job{
		ID:           "j1",
		OrderID:      "o1",
		PrinterID:    "p1",
		Status:       core.JobStatusFailed,
		ErrorMessage: "out of paper",
		RetryCount:   1,
	}

	// Filtered out: the endpoint only subscribes to failures.
	s.JobEvent(core.EventJobCompleted, job)
	s.JobEvent(core.EventJobFailed, job)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, core.EventJobFailed, got[0].event)
	require.Equal(t, core.EventJobFailed, got[0].payload.Event)

	var data JobEventData
	require.NoError(t, json.Unmarshal(got[0].payload.Data, &data))
	require.Equal(t, "j1", data.JobID)
	require.Equal(t, "out of paper", data.ErrorMessage)

	// The signature covers the exact bytes of the data object.
	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(got[0].payload.Data)
	require.Equal(t, hex.EncodeToString(mac.Sum(nil)), got[0].signature)
}

func TestSenderGivesUpOnClientError(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewSender([]config.WebhookEndpoint{{URL: srv.URL}}, testLogger())
	s.Start()
	defer s.Stop()

	s.JobEvent(core.EventJobStarted, &core.Job{ID: "j1", Status: core.JobStatusPrinting})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// Give the worker a moment; a 4xx must not be retried.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestSenderNoEndpointsIsInert(t *testing.T) {
	s := NewSender(nil, testLogger())
	s.Start()
	s.JobEvent(core.EventJobStarted, &core.Job{ID: "j1"})
	s.Stop()
}
