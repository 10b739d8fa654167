package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dinehub/printrouter/internal/config"
	"github.com/dinehub/printrouter/internal/core"
)

type Payload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Signature string    `json:"signature,omitempty"`
}

type JobEventData struct {
	JobID        string `json:"job_id"`
	OrderID      string `json:"order_id"`
	PrinterID    string `json:"printer_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count,omitempty"`
}

type task struct {
	endpoint config.WebhookEndpoint
	payload  *Payload
	attempt  int
}

// Sender pushes job lifecycle events to the HTTP endpoints named in the
// configuration. Delivery is asynchronous with bounded retries; an endpoint
// that keeps failing never slows down dispatch.
type Sender struct {
	endpoints  []config.WebhookEndpoint
	httpClient *http.Client
	retryCount int
	retryDelay time.Duration
	queue      chan *task
	stopCh     chan struct{}
	wg         sync.WaitGroup
	log        *slog.Logger
}

func NewSender(endpoints []config.WebhookEndpoint, log *slog.Logger) *Sender {
	return &Sender{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryCount: 3,
		retryDelay: 5 * time.Second,
		queue:      make(chan *task, 100),
		stopCh:     make(chan struct{}),
		log:        log,
	}
}

func (s *Sender) Start() {
	if len(s.endpoints) == 0 {
		return
	}
	for i := 0; i < 3; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

func (s *Sender) Stop() {
	if len(s.endpoints) == 0 {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
}

// JobEvent implements core.Notifier.
func (s *Sender) JobEvent(event string, job *core.Job) {
	data := &JobEventData{
		JobID:        job.ID,
		OrderID:      job.OrderID,
		PrinterID:    job.PrinterID,
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
	}

	for _, ep := range s.endpoints {
		if !ep.Wants(event) {
			continue
		}
		t := &task{
			endpoint: ep,
			payload: &Payload{
				Event:     event,
				Timestamp: time.Now().UTC(),
				Data:      data,
			},
		}
		select {
		case s.queue <- t:
		default:
			s.log.Warn("webhook queue full, event dropped", "event", event, "url", ep.URL)
		}
	}
}

func (s *Sender) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				s.log.Error("webhook delivery failed",
					"event", t.payload.Event,
					"url", t.endpoint.URL,
					"attempts", t.attempt,
					"error", err)
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	var lastErr error
	for t.attempt < s.retryCount {
		t.attempt++

		err := s.send(t.endpoint, t.payload)
		if err == nil {
			return nil
		}
		lastErr = err

		// 4xx means the endpoint rejected the payload; retrying will not help.
		if isClientError(err) {
			return err
		}

		if t.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) send(ep config.WebhookEndpoint, payload *Payload) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if ep.Secret != "" {
		payload.Signature = sign(dataBytes, ep.Secret)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", payload.Signature)
	req.Header.Set("X-Webhook-Event", payload.Event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}
	return nil
}

func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "http error: 4")
}
