package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dinehub/printrouter/internal/db"
)

type RouteRequest struct {
	OrderID     string
	Items       []OrderItem
	TableNumber string
	GuestCount  int
	OrderTime   string
}

type RouteResult struct {
	Jobs     []*Job
	Warnings []string
}

// Router resolves an order's items to printer-bound jobs. It groups items by
// category, picks the highest-priority active mapping per group and persists
// one job per resolved group. Dispatch is decoupled: created jobs are handed
// to the dispatcher and the call returns without waiting for output.
type Router struct {
	store      *db.Store
	dispatcher *Dispatcher
	log        *slog.Logger
}

func NewRouter(store *db.Store, dispatcher *Dispatcher, log *slog.Logger) *Router {
	return &Router{
		store:      store,
		dispatcher: dispatcher,
		log:        log,
	}
}

func (r *Router) RouteOrder(ctx context.Context, req RouteRequest) (*RouteResult, error) {
	if req.OrderID == "" {
		return nil, ErrMissingOrderID
	}
	if len(req.Items) == 0 {
		return nil, ErrNoOrderItems
	}

	// An entirely empty registry is an administrator problem, not a routing
	// outcome: fail before any grouping.
	printerCount, err := r.store.Printers.CountPrinters(ctx)
	if err != nil {
		return nil, err
	}
	if printerCount == 0 {
		return nil, ErrNoPrintersConfigured
	}

	groups, order := groupByCategory(req.Items)

	result := &RouteResult{}
	var jobs []*Job

	for _, categoryID := range order {
		printer, err := r.resolvePrinter(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		if printer == nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("No active printer found for category: %s", categoryID))
			continue
		}

		job := r.buildJob(req, printer, groups[categoryID])
		jobs = append(jobs, job)
	}

	if err := r.persistJobs(ctx, jobs); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		if r.dispatcher != nil {
			r.dispatcher.Enqueue(job.ID)
		}
	}

	r.log.Info("order routed",
		"order_id", req.OrderID,
		"jobs", len(jobs),
		"skipped_categories", len(result.Warnings))

	result.Jobs = jobs
	return result, nil
}

// groupByCategory partitions items by category id, preserving the order in
// which each category first appears. Items without a category land in the
// uncategorized group.
func groupByCategory(items []OrderItem) (map[string][]OrderItem, []string) {
	groups := make(map[string][]OrderItem)
	var order []string

	for _, item := range items {
		categoryID := item.CategoryID
		if categoryID == "" {
			categoryID = CategoryUncategorized
		}
		if _, seen := groups[categoryID]; !seen {
			order = append(order, categoryID)
		}
		groups[categoryID] = append(groups[categoryID], item)
	}
	return groups, order
}

// resolvePrinter returns the highest-priority active printer mapped to the
// category, or nil when no candidate survives. Mappings pointing at missing
// or inactive printers are discarded. First priority wins: there is no
// fan-out and no dispatch-time failover to lower-priority candidates.
func (r *Router) resolvePrinter(ctx context.Context, categoryID string) (*Printer, error) {
	mappings, err := r.store.Mappings.ListActiveForCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	for _, m := range mappings {
		rec, err := r.store.Printers.GetPrinterByID(ctx, m.PrinterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		if !rec.IsActive {
			continue
		}
		return printerFromRecord(rec), nil
	}
	return nil, nil
}

func (r *Router) buildJob(req RouteRequest, printer *Printer, items []OrderItem) *Job {
	metadata := map[string]any{
		"printerName":       printer.Name,
		"printerCategories": printer.Categories,
	}
	if req.TableNumber != "" {
		metadata["tableNumber"] = req.TableNumber
	}
	if req.GuestCount > 0 {
		metadata["guestCount"] = req.GuestCount
	}
	if req.OrderTime != "" {
		metadata["orderTime"] = req.OrderTime
	}

	return &Job{
		ID:         uuid.NewString(),
		OrderID:    req.OrderID,
		PrinterID:  printer.ID,
		Items:      items,
		Template:   TemplateKitchenOrder,
		Status:     JobStatusPending,
		RetryCount: 0,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
}

func (r *Router) persistJobs(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}

	records := make([]*db.PrintJob, 0, len(jobs))
	for _, job := range jobs {
		rec, err := job.record()
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return r.store.Jobs.CreateJobs(ctx, records)
}
