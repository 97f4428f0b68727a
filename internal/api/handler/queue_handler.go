package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/nate-a11y/lrpbolt-sub001/internal/api/middleware"
	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// QueueService is the direct enqueue surface.
type QueueService interface {
	EnqueueWorkItem(ctx context.Context, req domain.CreateWorkItemRequest) (*domain.WorkItem, error)
	EnqueueSMS(ctx context.Context, req domain.CreateSMSRequest) (*domain.OutboundMessage, error)
	GetWorkItem(ctx context.Context, id string) (*domain.WorkItem, error)
	GetOutbound(ctx context.Context, id string) (*domain.OutboundMessage, error)
	ListWorkItems(ctx context.Context, filter domain.ListFilter) ([]*domain.WorkItem, int, error)
}

// Processor runs one queued document through its pipeline.
type Processor interface {
	Process(ctx context.Context, id, eventID string) error
}

// QueueHandler serves the notify-queue and outbound-messages collections.
type QueueHandler struct {
	svc    QueueService
	notify Processor
	logger *zap.Logger
}

func NewQueueHandler(svc QueueService, notify Processor, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{svc: svc, notify: notify, logger: logger}
}

// CreateWorkItem handles POST /api/v1/notify-queue
//
// @Summary     Enqueue a ticket notification
// @Tags        notify-queue
// @Accept      json
// @Produce     json
// @Param       body  body      domain.CreateWorkItemRequest  true  "Targets and ticket context"
// @Success     201   {object}  domain.WorkItem
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/notify-queue [post]
func (h *QueueHandler) CreateWorkItem(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWorkItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := h.svc.EnqueueWorkItem(r.Context(), req)
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("enqueue work item failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// GetWorkItem handles GET /api/v1/notify-queue/{id}
//
// @Summary  Get a work item with its delivery outcomes
// @Tags     notify-queue
// @Produce  json
// @Param    id   path      string  true  "Work item UUID"
// @Success  200  {object}  domain.WorkItem
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notify-queue/{id} [get]
func (h *QueueHandler) GetWorkItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetWorkItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// ListWorkItems handles GET /api/v1/notify-queue
//
// @Summary  List work items with filtering and pagination
// @Tags     notify-queue
// @Produce  json
// @Param    status  query     string  false  "Filter by status (queued, sent, error)"
// @Param    from    query     string  false  "Created after (RFC3339)"
// @Param    to      query     string  false  "Created before (RFC3339)"
// @Param    page    query     int     false  "Page number (default 1)"
// @Param    limit   query     int     false  "Items per page (default 20, max 100)"
// @Success  200     {object}  map[string]any
// @Router   /api/v1/notify-queue [get]
func (h *QueueHandler) ListWorkItems(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.svc.ListWorkItems(r.Context(), filter)
	if err != nil {
		h.logger.Error("list work items failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list work items")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// ProcessWorkItem handles POST /api/v1/notify-queue/{id}/process
//
// Runs the work item through the pipeline synchronously. The idempotency
// guard still applies, so an item that was already claimed is returned
// unchanged.
//
// @Summary  Process a queued work item now
// @Tags     notify-queue
// @Produce  json
// @Param    id          path      string  true   "Work item UUID"
// @Param    X-Event-ID  header    string  false  "Trigger event id"
// @Success  200         {object}  domain.WorkItem
// @Failure  404         {object}  map[string]string
// @Router   /api/v1/notify-queue/{id}/process [post]
func (h *QueueHandler) ProcessWorkItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.notify.Process(r.Context(), id, r.Header.Get("X-Event-ID")); err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("manual processing failed",
			zap.String("work_item_id", id), zap.Error(err))
		mapError(w, err)
		return
	}

	item, err := h.svc.GetWorkItem(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// CreateSMS handles POST /api/v1/outbound-messages
//
// @Summary     Enqueue a direct SMS
// @Tags        outbound-messages
// @Accept      json
// @Produce     json
// @Param       body  body      domain.CreateSMSRequest  true  "Recipient and body"
// @Success     201   {object}  domain.OutboundMessage
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/outbound-messages [post]
func (h *QueueHandler) CreateSMS(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.svc.EnqueueSMS(r.Context(), req)
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("enqueue sms failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// GetSMS handles GET /api/v1/outbound-messages/{id}
//
// @Summary  Get a direct SMS and its delivery status
// @Tags     outbound-messages
// @Produce  json
// @Param    id   path      string  true  "Outbound message UUID"
// @Success  200  {object}  domain.OutboundMessage
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/outbound-messages/{id} [get]
func (h *QueueHandler) GetSMS(w http.ResponseWriter, r *http.Request) {
	msg, err := h.svc.GetOutbound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func parseListFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	filter := domain.ListFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		st := domain.Status(s)
		if !st.IsValid() {
			return filter, fmt.Errorf("unknown status %q", s)
		}
		filter.Status = &st
	}
	if f := q.Get("from"); f != "" {
		if t, err := time.Parse(time.RFC3339, f); err == nil {
			filter.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}
	return filter, nil
}
