package db

import (
	"time"
)

const (
	TransportNetwork = "network"
	TransportSerial  = "serial"
	TransportSpooler = "spooler"
)

type Printer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	Port           int       `json:"port"`
	Transport      string    `json:"transport"`
	IsActive       bool      `json:"is_active"`
	CategoriesJSON string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CategoryMapping struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	PrinterID  string    `json:"printer_id"`
	Priority   int       `json:"priority"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PrintJob struct {
	ID           string     `json:"id"`
	OrderID      string     `json:"order_id"`
	PrinterID    string     `json:"printer_id"`
	ItemsJSON    string     `json:"-"`
	Template     string     `json:"template"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MetadataJSON string     `json:"-"`
	ErrorMessage string     `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

type JobFilter struct {
	OrderID   string
	PrinterID string
	Status    string
	Limit     int
	Offset    int
}
