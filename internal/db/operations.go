package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PrinterOperations struct {
	db *sql.DB
}

func (o *PrinterOperations) CreatePrinter(ctx context.Context, p *Printer) error {
	_, err := o.db.ExecContext(ctx, insertPrinter,
		p.ID, p.Name, p.Address, p.Port, p.Transport, p.IsActive, p.CategoriesJSON)
	if err != nil {
		return fmt.Errorf("failed to create printer: %w", err)
	}
	return nil
}

func (o *PrinterOperations) GetPrinterByID(ctx context.Context, id string) (*Printer, error) {
	p := &Printer{}
	err := o.db.QueryRowContext(ctx, getPrinterByID, id).Scan(
		&p.ID, &p.Name, &p.Address, &p.Port, &p.Transport, &p.IsActive,
		&p.CategoriesJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get printer: %w", err)
	}
	return p, nil
}

func (o *PrinterOperations) ListPrinters(ctx context.Context) ([]*Printer, error) {
	rows, err := o.db.QueryContext(ctx, listPrinters)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var printers []*Printer
	for rows.Next() {
		p := &Printer{}
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Address, &p.Port, &p.Transport, &p.IsActive,
			&p.CategoriesJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

func (o *PrinterOperations) CountPrinters(ctx context.Context) (int, error) {
	var count int
	err := o.db.QueryRowContext(ctx, countPrinters).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count printers: %w", err)
	}
	return count, nil
}

// EndpointInUse reports whether another active printer of the same transport
// already claims the (address, port) pair. excludeID skips the printer being
// edited; pass "" when creating.
func (o *PrinterOperations) EndpointInUse(ctx context.Context, address string, port int, transport, excludeID string) (bool, error) {
	var count int
	err := o.db.QueryRowContext(ctx, countActivePrintersAtEndpoint, address, port, transport, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check printer endpoint: %w", err)
	}
	return count > 0, nil
}

func (o *PrinterOperations) UpdatePrinter(ctx context.Context, p *Printer) error {
	_, err := o.db.ExecContext(ctx, updatePrinter,
		p.Name, p.Address, p.Port, p.Transport, p.IsActive, p.CategoriesJSON, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update printer: %w", err)
	}
	return nil
}

func (o *PrinterOperations) DeletePrinter(ctx context.Context, id string) error {
	_, err := o.db.ExecContext(ctx, deletePrinter, id)
	if err != nil {
		return fmt.Errorf("failed to delete printer: %w", err)
	}
	return nil
}

type MappingOperations struct {
	db *sql.DB
}

func (o *MappingOperations) CreateMapping(ctx context.Context, m *CategoryMapping) error {
	_, err := o.db.ExecContext(ctx, insertMapping,
		m.ID, m.CategoryID, m.PrinterID, m.Priority, m.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create mapping: %w", err)
	}
	return nil
}

func (o *MappingOperations) GetMappingByID(ctx context.Context, id string) (*CategoryMapping, error) {
	m := &CategoryMapping{}
	err := o.db.QueryRowContext(ctx, getMappingByID, id).Scan(
		&m.ID, &m.CategoryID, &m.PrinterID, &m.Priority, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return m, nil
}

func (o *MappingOperations) GetMappingByPair(ctx context.Context, categoryID, printerID string) (*CategoryMapping, error) {
	m := &CategoryMapping{}
	err := o.db.QueryRowContext(ctx, getMappingByPair, categoryID, printerID).Scan(
		&m.ID, &m.CategoryID, &m.PrinterID, &m.Priority, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get mapping by pair: %w", err)
	}
	return m, nil
}

func (o *MappingOperations) ListMappings(ctx context.Context) ([]*CategoryMapping, error) {
	rows, err := o.db.QueryContext(ctx, listMappings)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	return scanMappings(rows)
}

// ListActiveForCategory returns active mappings for a category ordered by
// ascending priority. Equal priorities keep insertion order (rowid), so the
// result is stable regardless of id values or timestamp granularity.
func (o *MappingOperations) ListActiveForCategory(ctx context.Context, categoryID string) ([]*CategoryMapping, error) {
	rows, err := o.db.QueryContext(ctx, listActiveMappingsForCategory, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings for category: %w", err)
	}
	defer rows.Close()

	return scanMappings(rows)
}

func (o *MappingOperations) UpdateMapping(ctx context.Context, m *CategoryMapping) error {
	_, err := o.db.ExecContext(ctx, updateMapping,
		m.CategoryID, m.PrinterID, m.Priority, m.IsActive, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}
	return nil
}

func (o *MappingOperations) DeleteMapping(ctx context.Context, id string) error {
	_, err := o.db.ExecContext(ctx, deleteMapping, id)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	return nil
}

func scanMappings(rows *sql.Rows) ([]*CategoryMapping, error) {
	var mappings []*CategoryMapping
	for rows.Next() {
		m := &CategoryMapping{}
		if err := rows.Scan(
			&m.ID, &m.CategoryID, &m.PrinterID, &m.Priority, &m.IsActive,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

type JobOperations struct {
	db *sql.DB
}

// CreateJobs inserts every job of one routed order in a single transaction so
// a partially written order is never observable.
func (o *JobOperations) CreateJobs(ctx context.Context, jobs []*PrintJob) error {
	if len(jobs) == 0 {
		return nil
	}

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, j := range jobs {
		if _, err := tx.ExecContext(ctx, insertJob,
			j.ID, j.OrderID, j.PrinterID, j.ItemsJSON, j.Template,
			j.Status, j.RetryCount, j.MetadataJSON, j.ErrorMessage); err != nil {
			return fmt.Errorf("failed to insert job %s: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit jobs: %w", err)
	}
	return nil
}

func (o *JobOperations) GetJobByID(ctx context.Context, id string) (*PrintJob, error) {
	j := &PrintJob{}
	err := o.db.QueryRowContext(ctx, getJobByID, id).Scan(
		&j.ID, &j.OrderID, &j.PrinterID, &j.ItemsJSON, &j.Template,
		&j.Status, &j.RetryCount, &j.MetadataJSON, &j.ErrorMessage,
		&j.CreatedAt, &j.CompletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func (o *JobOperations) ListJobs(ctx context.Context, filter JobFilter) ([]*PrintJob, error) {
	var conditions []string
	var args []interface{}

	if filter.OrderID != "" {
		conditions = append(conditions, "order_id = ?")
		args = append(args, filter.OrderID)
	}
	if filter.PrinterID != "" {
		conditions = append(conditions, "printer_id = ?")
		args = append(args, filter.PrinterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT id, order_id, printer_id, items_json, template, status, retry_count, metadata_json, error_message, created_at, completed_at FROM print_jobs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := 100
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*PrintJob
	for rows.Next() {
		j := &PrintJob{}
		if err := rows.Scan(
			&j.ID, &j.OrderID, &j.PrinterID, &j.ItemsJSON, &j.Template,
			&j.Status, &j.RetryCount, &j.MetadataJSON, &j.ErrorMessage,
			&j.CreatedAt, &j.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (o *JobOperations) ListJobIDsByStatus(ctx context.Context, status string) ([]string, error) {
	rows, err := o.db.QueryContext(ctx, listJobIDsByStatus, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list job ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// The Mark* operations carry their status precondition in SQL so a transition
// only ever fires from the expected prior state. They report whether the
// transition happened; a false return with no error means the job was missing
// or in a different state.

func (o *JobOperations) MarkPrinting(ctx context.Context, id string) (bool, error) {
	res, err := o.db.ExecContext(ctx, markJobPrinting, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark job printing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (o *JobOperations) MarkCompleted(ctx context.Context, id string) (bool, error) {
	res, err := o.db.ExecContext(ctx, markJobCompleted, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark job completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (o *JobOperations) MarkFailed(ctx context.Context, id, errorMessage string) (bool, error) {
	res, err := o.db.ExecContext(ctx, markJobFailed, errorMessage, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark job failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// SaveJob writes back the mutable fields of a single job record. It reports
// whether a row was updated; false with no error means the job is gone.
func (o *JobOperations) SaveJob(ctx context.Context, j *PrintJob) (bool, error) {
	res, err := o.db.ExecContext(ctx, saveJob,
		j.Status, j.RetryCount, j.MetadataJSON, j.ErrorMessage, j.CompletedAt, j.ID)
	if err != nil {
		return false, fmt.Errorf("failed to save job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// RecoverPrinting returns jobs stuck in printing back to pending. Run once at
// startup so a crash mid-dispatch never leaves status ambiguous.
func (o *JobOperations) RecoverPrinting(ctx context.Context) (int64, error) {
	res, err := o.db.ExecContext(ctx, recoverPrintingJobs)
	if err != nil {
		return 0, fmt.Errorf("failed to recover printing jobs: %w", err)
	}
	return res.RowsAffected()
}

func (o *JobOperations) ResetForRetry(ctx context.Context, id string) (bool, error) {
	res, err := o.db.ExecContext(ctx, resetJobForRetry, id)
	if err != nil {
		return false, fmt.Errorf("failed to reset job for retry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (o *JobOperations) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := o.db.QueryContext(ctx, countJobsByStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

type SettingsOperations struct {
	db *sql.DB
}

func (o *SettingsOperations) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := o.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", sql.ErrNoRows
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

func (o *SettingsOperations) SetSetting(ctx context.Context, key, value string) error {
	_, err := o.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP
	`, key, value, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}
