package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/api/handler"
	apimw "github.com/nate-a11y/lrpbolt-sub001/internal/api/middleware"
	"github.com/nate-a11y/lrpbolt-sub001/internal/queue"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Queue    handler.QueueService
	Process  handler.Processor
	Tickets  handler.TicketNotifier
	DB       handler.Pinger
	Priority *queue.PriorityQueue
	Gatherer prometheus.Gatherer
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(deps Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	qh := handler.NewQueueHandler(deps.Queue, deps.Process, logger)
	th := handler.NewTicketEventHandler(deps.Tickets, logger)
	sh := handler.NewStatsHandler(deps.Priority)
	hh := handler.NewHealthHandler(deps.DB)

	r.Get("/health", hh.Health)
	r.Get("/ready", hh.Ready)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/notify-queue", qh.CreateWorkItem)
		r.Get("/notify-queue", qh.ListWorkItems)
		r.Get("/notify-queue/{id}", qh.GetWorkItem)
		r.Post("/notify-queue/{id}/process", qh.ProcessWorkItem)

		r.Post("/outbound-messages", qh.CreateSMS)
		r.Get("/outbound-messages/{id}", qh.GetSMS)

		r.Post("/ticket-events", th.Handle)

		r.Get("/stats", sh.GetStats)
	})

	return r
}
