package httpapi

import (
	"errors"
	"time"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/app"
	idb "github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/database"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AlertHandler struct {
	scanner   app.AlertScanner
	lifecycle *app.AlertLifecycleService
	logger    *logrus.Logger
}

func NewAlertHandler(scanner app.AlertScanner, lifecycle *app.AlertLifecycleService, logger *logrus.Logger) *AlertHandler {
	return &AlertHandler{scanner: scanner, lifecycle: lifecycle, logger: logger}
}

// Scan runs the alert scan on demand. An optional as_of query parameter
// (YYYY-MM-DD) overrides the evaluation date; per-alert errors stay in the
// logs, the caller only gets the aggregate counts.
func (h *AlertHandler) Scan(c *gin.Context) {
	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			Fail(c, "invalid as_of date, expected YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	result, err := h.scanner.ScanAndSend(c.Request.Context(), asOf)
	if err != nil {
		h.logger.Errorf("Manual alert scan failed: %v", err)
		Fail(c, "alert scan failed")
		return
	}
	Success(c, gin.H{"email": result.Email, "push": result.Push})
}

type createCustomAlertRequest struct {
	Title    string  `json:"title" binding:"required"`
	Body     string  `json:"body" binding:"required"`
	DueDate  string  `json:"due_date" binding:"required"` // YYYY-MM-DD
	GroupIDs []int64 `json:"group_ids"`
	UserIDs  []int64 `json:"user_ids"`
}

// CreateCustom registers an ad hoc one-shot alert.
func (h *AlertHandler) CreateCustom(c *gin.Context) {
	var req createCustomAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, "invalid request body: "+err.Error())
		return
	}
	dueDate, err := time.ParseInLocation("2006-01-02", req.DueDate, time.Local)
	if err != nil {
		Fail(c, "invalid due_date, expected YYYY-MM-DD")
		return
	}

	a, err := h.lifecycle.CreateCustomAlert(c.Request.Context(), req.Title, req.Body, dueDate, req.GroupIDs, req.UserIDs)
	if err != nil {
		if errors.Is(err, app.ErrNoTargetAudience) {
			Fail(c, err.Error())
			return
		}
		h.logger.Errorf("Failed to create custom alert: %v", err)
		Fail(c, "failed to create alert")
		return
	}
	Success(c, gin.H{"id": a.ID})
}

// GenerateForContract creates the scheduled alerts a contract implies.
func (h *AlertHandler) GenerateForContract(c *gin.Context) {
	var uri struct {
		ID int64 `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		Fail(c, "invalid contract id")
		return
	}

	created, err := h.lifecycle.GenerateContractAlerts(c.Request.Context(), uri.ID)
	if err != nil {
		switch {
		case errors.Is(err, idb.ErrContractNotFound):
			Fail(c, "contract not found")
		case errors.Is(err, app.ErrContractNotAlertable),
			errors.Is(err, app.ErrMissingTermMonths),
			errors.Is(err, app.ErrMissingEndDate):
			Fail(c, err.Error())
		default:
			h.logger.Errorf("Failed to generate alerts for contract %d: %v", uri.ID, err)
			Fail(c, "failed to generate contract alerts")
		}
		return
	}
	Success(c, gin.H{"created": len(created)})
}

// MarkRead records that the authenticated user viewed an alert.
func (h *AlertHandler) MarkRead(c *gin.Context) {
	var uri struct {
		ID int64 `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		Fail(c, "invalid alert id")
		return
	}
	userID := c.GetInt64("user_id")

	if err := h.lifecycle.MarkAlertRead(c.Request.Context(), uri.ID, userID); err != nil {
		if errors.Is(err, idb.ErrAlertNotFound) {
			Fail(c, "alert not found")
			return
		}
		h.logger.Errorf("Failed to mark alert %d read by user %d: %v", uri.ID, userID, err)
		Fail(c, "failed to mark alert as read")
		return
	}
	Success(c, nil)
}

type alertListItem struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	DueDate     string `json:"due_date"`
	PeriodIndex *int32 `json:"period_index,omitempty"`
	Status      string `json:"status"`
	Read        bool   `json:"read"`
}

// List returns the alerts targeted at the authenticated user with read flags.
func (h *AlertHandler) List(c *gin.Context) {
	userID := c.GetInt64("user_id")

	alerts, err := h.lifecycle.ListAlertsForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorf("Failed to list alerts for user %d: %v", userID, err)
		Fail(c, "failed to list alerts")
		return
	}

	items := make([]alertListItem, 0, len(alerts))
	for _, entry := range alerts {
		item := alertListItem{
			ID:      entry.Alert.ID,
			Type:    string(entry.Alert.Type),
			Title:   entry.Alert.Title,
			Body:    entry.Alert.Body,
			DueDate: entry.Alert.DueDate.Format("2006-01-02"),
			Status:  string(entry.Alert.Status),
			Read:    entry.Read,
		}
		if entry.Alert.PeriodIndex.Valid {
			idx := entry.Alert.PeriodIndex.Int32
			item.PeriodIndex = &idx
		}
		items = append(items, item)
	}
	Success(c, items)
}
