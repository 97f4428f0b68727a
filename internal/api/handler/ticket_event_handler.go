package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/nate-a11y/lrpbolt-sub001/internal/api/middleware"
	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// TicketNotifier turns a ticket change into a queued work item.
type TicketNotifier interface {
	HandleEvent(ctx context.Context, ev domain.TicketEvent) (string, error)
}

// TicketEventHandler accepts ticket create/update triggers over HTTP.
type TicketEventHandler struct {
	notifier TicketNotifier
	logger   *zap.Logger
}

func NewTicketEventHandler(notifier TicketNotifier, logger *zap.Logger) *TicketEventHandler {
	return &TicketEventHandler{notifier: notifier, logger: logger}
}

// Handle handles POST /api/v1/ticket-events
//
// A 202 with an empty work_item_id means the event was a duplicate or did
// not warrant a notification.
//
// @Summary     Trigger the ticket notification path
// @Tags        ticket-events
// @Accept      json
// @Produce     json
// @Param       body  body      domain.TicketEvent  true  "Ticket change event"
// @Success     202   {object}  map[string]string
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/ticket-events [post]
func (h *TicketEventHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var ev domain.TicketEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if ev.EventID == "" {
		ev.EventID = r.Header.Get("X-Event-ID")
	}

	id, err := h.notifier.HandleEvent(r.Context(), ev)
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("ticket event failed",
			zap.String("ticket_id", ev.TicketID), zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"work_item_id": id})
}
