package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dinehub/printrouter/internal/db"
)

type CreateMappingRequest struct {
	CategoryID string `json:"category_id" binding:"required"`
	PrinterID  string `json:"printer_id" binding:"required"`
	Priority   int    `json:"priority" binding:"omitempty,gt=0"`
	IsActive   *bool  `json:"is_active"`
}

type UpdateMappingRequest struct {
	Priority int   `json:"priority" binding:"omitempty,gt=0"`
	IsActive *bool `json:"is_active"`
}

type MappingResponse struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	PrinterID  string    `json:"printer_id"`
	Priority   int       `json:"priority"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type MappingHandler struct {
	mappings *db.MappingOperations
	printers *db.PrinterOperations
}

func NewMappingHandler(store *db.Store) *MappingHandler {
	return &MappingHandler{
		mappings: store.Mappings,
		printers: store.Printers,
	}
}

func (h *MappingHandler) ListMappings(c *gin.Context) {
	mappings, err := h.mappings.ListMappings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve mappings",
		})
		return
	}

	responses := make([]MappingResponse, 0, len(mappings))
	for _, m := range mappings {
		responses = append(responses, mappingToResponse(m))
	}

	c.JSON(http.StatusOK, responses)
}

func (h *MappingHandler) CreateMapping(c *gin.Context) {
	var req CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if _, err := h.printers.GetPrinterByID(c.Request.Context(), req.PrinterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "unknown_printer",
				Message: "Mapping references a printer that does not exist",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to check printer",
		})
		return
	}

	if _, err := h.mappings.GetMappingByPair(c.Request.Context(), req.CategoryID, req.PrinterID); err == nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "duplicate_mapping",
			Message: "A mapping for this category and printer already exists",
		})
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to check mapping",
		})
		return
	}

	priority := req.Priority
	if priority == 0 {
		priority = 1
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	mapping := &db.CategoryMapping{
		ID:         uuid.NewString(),
		CategoryID: req.CategoryID,
		PrinterID:  req.PrinterID,
		Priority:   priority,
		IsActive:   isActive,
	}

	if err := h.mappings.CreateMapping(c.Request.Context(), mapping); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to create mapping",
		})
		return
	}

	created, err := h.mappings.GetMappingByID(c.Request.Context(), mapping.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to read created mapping",
		})
		return
	}

	c.JSON(http.StatusCreated, mappingToResponse(created))
}

func (h *MappingHandler) UpdateMapping(c *gin.Context) {
	id := c.Param("id")

	mapping, err := h.mappings.GetMappingByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Mapping not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve mapping",
		})
		return
	}

	var req UpdateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if req.Priority != 0 {
		mapping.Priority = req.Priority
	}
	if req.IsActive != nil {
		mapping.IsActive = *req.IsActive
	}

	if err := h.mappings.UpdateMapping(c.Request.Context(), mapping); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to update mapping",
		})
		return
	}

	updated, err := h.mappings.GetMappingByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to read updated mapping",
		})
		return
	}

	c.JSON(http.StatusOK, mappingToResponse(updated))
}

func (h *MappingHandler) DeleteMapping(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.mappings.GetMappingByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Mapping not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve mapping",
		})
		return
	}

	if err := h.mappings.DeleteMapping(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to delete mapping",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func mappingToResponse(m *db.CategoryMapping) MappingResponse {
	return MappingResponse{
		ID:         m.ID,
		CategoryID: m.CategoryID,
		PrinterID:  m.PrinterID,
		Priority:   m.Priority,
		IsActive:   m.IsActive,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
