package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dinehub/printrouter/internal/db"
)

type CreatePrinterRequest struct {
	Name       string   `json:"name" binding:"required"`
	Address    string   `json:"address" binding:"required"`
	Port       int      `json:"port"`
	Transport  string   `json:"transport" binding:"omitempty,oneof=network serial spooler"`
	IsActive   *bool    `json:"is_active"`
	Categories []string `json:"categories"`
}

type UpdatePrinterRequest struct {
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	Port       int      `json:"port"`
	Transport  string   `json:"transport" binding:"omitempty,oneof=network serial spooler"`
	IsActive   *bool    `json:"is_active"`
	Categories []string `json:"categories"`
}

type PrinterResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Port       int       `json:"port"`
	Transport  string    `json:"transport"`
	IsActive   bool      `json:"is_active"`
	Categories []string  `json:"categories"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PrinterHandler struct {
	printers *db.PrinterOperations
}

func NewPrinterHandler(store *db.Store) *PrinterHandler {
	return &PrinterHandler{printers: store.Printers}
}

func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	printers, err := h.printers.ListPrinters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve printers",
		})
		return
	}

	responses := make([]PrinterResponse, 0, len(printers))
	for _, p := range printers {
		responses = append(responses, printerToResponse(p))
	}

	c.JSON(http.StatusOK, responses)
}

func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	printer, err := h.printers.GetPrinterByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Printer not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve printer",
		})
		return
	}

	c.JSON(http.StatusOK, printerToResponse(printer))
}

func (h *PrinterHandler) CreatePrinter(c *gin.Context) {
	var req CreatePrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	port := req.Port
	if port == 0 {
		port = 9100
	}
	transport := req.Transport
	if transport == "" {
		transport = db.TransportNetwork
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	// Two active printers on one endpoint would silently split a station's
	// tickets, so that shape is rejected up front.
	if isActive {
		inUse, err := h.printers.EndpointInUse(c.Request.Context(), req.Address, port, transport, "")
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "database_error",
				Message: "Failed to check printer endpoint",
			})
			return
		}
		if inUse {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "duplicate_endpoint",
				Message: "An active printer already uses this address and port",
			})
			return
		}
	}

	categoriesJSON, err := encodeCategories(req.Categories)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid categories",
		})
		return
	}

	printer := &db.Printer{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Address:        req.Address,
		Port:           port,
		Transport:      transport,
		IsActive:       isActive,
		CategoriesJSON: categoriesJSON,
	}

	if err := h.printers.CreatePrinter(c.Request.Context(), printer); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to create printer",
		})
		return
	}

	created, err := h.printers.GetPrinterByID(c.Request.Context(), printer.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to read created printer",
		})
		return
	}

	c.JSON(http.StatusCreated, printerToResponse(created))
}

func (h *PrinterHandler) UpdatePrinter(c *gin.Context) {
	id := c.Param("id")

	printer, err := h.printers.GetPrinterByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Printer not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve printer",
		})
		return
	}

	var req UpdatePrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if req.Name != "" {
		printer.Name = req.Name
	}
	if req.Address != "" {
		printer.Address = req.Address
	}
	if req.Port != 0 {
		printer.Port = req.Port
	}
	if req.Transport != "" {
		printer.Transport = req.Transport
	}
	if req.IsActive != nil {
		printer.IsActive = *req.IsActive
	}
	if req.Categories != nil {
		categoriesJSON, err := encodeCategories(req.Categories)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "Invalid categories",
			})
			return
		}
		printer.CategoriesJSON = categoriesJSON
	}

	if printer.IsActive {
		inUse, err := h.printers.EndpointInUse(c.Request.Context(), printer.Address, printer.Port, printer.Transport, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "database_error",
				Message: "Failed to check printer endpoint",
			})
			return
		}
		if inUse {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "duplicate_endpoint",
				Message: "An active printer already uses this address and port",
			})
			return
		}
	}

	if err := h.printers.UpdatePrinter(c.Request.Context(), printer); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to update printer",
		})
		return
	}

	updated, err := h.printers.GetPrinterByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to read updated printer",
		})
		return
	}

	c.JSON(http.StatusOK, printerToResponse(updated))
}

func (h *PrinterHandler) DeletePrinter(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.printers.GetPrinterByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Printer not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve printer",
		})
		return
	}

	if err := h.printers.DeletePrinter(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to delete printer",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func printerToResponse(p *db.Printer) PrinterResponse {
	resp := PrinterResponse{
		ID:         p.ID,
		Name:       p.Name,
		Address:    p.Address,
		Port:       p.Port,
		Transport:  p.Transport,
		IsActive:   p.IsActive,
		Categories: []string{},
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if p.CategoriesJSON != "" {
		_ = json.Unmarshal([]byte(p.CategoriesJSON), &resp.Categories)
	}
	return resp
}

func encodeCategories(categories []string) (string, error) {
	if categories == nil {
		categories = []string{}
	}
	data, err := json.Marshal(categories)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
