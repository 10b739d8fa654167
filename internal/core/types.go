package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dinehub/printrouter/internal/db"
)

var (
	ErrNoPrintersConfigured = errors.New("no printers configured")
	ErrMissingOrderID       = errors.New("order id is required")
	ErrNoOrderItems         = errors.New("order has no items")
	ErrJobNotFound          = errors.New("job not found")
	ErrJobNotFailed         = errors.New("only failed jobs can be retried")
	ErrRetryLimitReached    = errors.New("retry limit reached")
	ErrTerminalState        = errors.New("job is in a terminal state")
	ErrPrinterNotFound      = errors.New("printer not found")
	ErrNoSerialPort         = errors.New("no serial port found")
	ErrSpoolerUnavailable   = errors.New("print spooler helper unavailable")
	ErrUnknownTransport     = errors.New("no backend for printer transport")
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusPrinting  JobStatus = "printing"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CategoryUncategorized collects order items that arrive without a category
// identifier. Routing treats it like any other category.
const CategoryUncategorized = "uncategorized"

const TemplateKitchenOrder = "kitchen-order"

// OrderItem is a denormalized snapshot of one order line. Quantity and price
// are captured at job-creation time so later catalog edits never alter a
// dispatched job.
type OrderItem struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	Notes        string  `json:"notes,omitempty"`
	CategoryID   string  `json:"categoryId,omitempty"`
	CategoryName string  `json:"categoryName,omitempty"`
}

type Job struct {
	ID           string         `json:"id"`
	OrderID      string         `json:"orderId"`
	PrinterID    string         `json:"printerId"`
	Items        []OrderItem    `json:"items"`
	Template     string         `json:"template"`
	Status       JobStatus      `json:"status"`
	RetryCount   int            `json:"retryCount"`
	Metadata     map[string]any `json:"metadata"`
	ErrorMessage string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
}

type Printer struct {
	ID         string
	Name       string
	Address    string
	Port       int
	Transport  string
	Active     bool
	Categories []string
}

// Backend is the single capability all dispatch backends implement: take a
// resolved job and attempt physical or logical output.
type Backend interface {
	Name() string
	Print(ctx context.Context, job *Job, printer *Printer) error
}

// Notifier receives job lifecycle events. Implementations must not block.
type Notifier interface {
	JobEvent(event string, job *Job)
}

const (
	EventJobStarted   = "job_started"
	EventJobCompleted = "job_completed"
	EventJobFailed    = "job_failed"
)

// SleepFunc models printer latency and is injected so tests run without
// wall-clock delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// JobFromRecord decodes a stored job row into its domain form.
func JobFromRecord(rec *db.PrintJob) (*Job, error) {
	j := &Job{
		ID:           rec.ID,
		OrderID:      rec.OrderID,
		PrinterID:    rec.PrinterID,
		Template:     rec.Template,
		Status:       JobStatus(rec.Status),
		RetryCount:   rec.RetryCount,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt,
		CompletedAt:  rec.CompletedAt,
	}

	if rec.ItemsJSON != "" {
		if err := json.Unmarshal([]byte(rec.ItemsJSON), &j.Items); err != nil {
			return nil, fmt.Errorf("failed to decode job items: %w", err)
		}
	}
	if rec.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(rec.MetadataJSON), &j.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode job metadata: %w", err)
		}
	}
	if j.Metadata == nil {
		j.Metadata = make(map[string]any)
	}
	return j, nil
}

func (j *Job) record() (*db.PrintJob, error) {
	itemsJSON, err := json.Marshal(j.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job items: %w", err)
	}
	metadataJSON, err := json.Marshal(j.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job metadata: %w", err)
	}

	return &db.PrintJob{
		ID:           j.ID,
		OrderID:      j.OrderID,
		PrinterID:    j.PrinterID,
		ItemsJSON:    string(itemsJSON),
		Template:     j.Template,
		Status:       string(j.Status),
		RetryCount:   j.RetryCount,
		MetadataJSON: string(metadataJSON),
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		CompletedAt:  j.CompletedAt,
	}, nil
}

func printerFromRecord(rec *db.Printer) *Printer {
	p := &Printer{
		ID:        rec.ID,
		Name:      rec.Name,
		Address:   rec.Address,
		Port:      rec.Port,
		Transport: rec.Transport,
		Active:    rec.IsActive,
	}
	if rec.CategoriesJSON != "" {
		// Malformed category lists degrade to "no affiliations" rather than
		// blocking routing.
		_ = json.Unmarshal([]byte(rec.CategoriesJSON), &p.Categories)
	}
	return p
}
