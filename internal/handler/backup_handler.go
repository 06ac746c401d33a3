package handler

import (
	"net/http"

	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// BackupHandler handles backup export, listing and restore
type BackupHandler struct {
	backupService *service.BackupService
}

// NewBackupHandler creates a new BackupHandler
func NewBackupHandler(backupService *service.BackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

// BackupKeyRequest names a stored backup
type BackupKeyRequest struct {
	Key string `json:"key"`
}

// BackupResponse describes one stored backup
type BackupResponse struct {
	Key         string `json:"key"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// Export handles POST /api/v1/backups
func (h *BackupHandler) Export(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	key, err := h.backupService.Export(c.Request().Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}
	url, err := h.backupService.DownloadURL(c.Request().Context(), userID, key)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, BackupResponse{Key: key, DownloadURL: url})
}

// List handles GET /api/v1/backups
func (h *BackupHandler) List(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	keys, err := h.backupService.List(c.Request().Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}
	response := make([]BackupResponse, len(keys))
	for i, k := range keys {
		response[i] = BackupResponse{Key: k}
	}
	return c.JSON(http.StatusOK, response)
}

// Restore handles POST /api/v1/backups/restore
func (h *BackupHandler) Restore(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var req BackupKeyRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if req.Key == "" {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "key", Message: "Key is required"},
		})
	}

	result, err := h.backupService.Restore(c.Request().Context(), userID, req.Key)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Download handles GET /api/v1/backups/download?key=
func (h *BackupHandler) Download(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	key := c.QueryParam("key")
	if key == "" {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "key", Message: "Key is required"},
		})
	}

	url, err := h.backupService.DownloadURL(c.Request().Context(), userID, key)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, BackupResponse{Key: key, DownloadURL: url})
}
