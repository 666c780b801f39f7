// Package api is the thin HTTP glue over the queue, ledger, and catalog.
// Routes and response shapes follow the seat and stock services this system
// replaces; reservation requests come back as "in process" and callers poll
// the ledger or the job for the outcome.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/you/reserveq/internal/catalog"
	"github.com/you/reserveq/internal/ledger"
	"github.com/you/reserveq/internal/notification"
	"github.com/you/reserveq/internal/queue"
	"github.com/you/reserveq/internal/reservation"
)

type Server struct {
	q   *queue.Queue
	l   *ledger.Ledger
	cat *catalog.Catalog
	log *zap.Logger
}

func New(q *queue.Queue, l *ledger.Ledger, cat *catalog.Catalog, log *zap.Logger) *Server {
	return &Server{q: q, l: l, cat: cat, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/available_seats", s.availableSeats)
	r.Get("/reserve_seat", s.reserveSeat)
	r.Get("/process", s.process)
	r.Get("/list_products", s.listProducts)
	r.Get("/list_products/{itemID}", s.productDetail)
	r.Get("/reserve_product/{itemID}", s.reserveProduct)
	r.Post("/jobs", s.createJobs)
	r.Get("/jobs/{topic}/{id}", s.jobStatus)
	return r
}

func (s *Server) availableSeats(w http.ResponseWriter, r *http.Request) {
	n, err := s.l.CurrentAvailable(r.Context(), reservation.SeatKey)
	if err != nil {
		s.storeError(w, err)
		return
	}
	// The count is rendered as a string, as the original service did.
	s.json(w, http.StatusOK, map[string]string{
		"numberOfAvailableSeats": strconv.FormatInt(n, 10),
	})
}

func (s *Server) reserveSeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := s.l.CurrentAvailable(ctx, reservation.SeatKey)
	if err != nil {
		s.storeError(w, err)
		return
	}
	// Blocked-ness is derived from the ledger at request time. Jobs already
	// queued when the counter hits zero still fail out-of-stock.
	if n == 0 {
		s.json(w, http.StatusOK, map[string]string{"status": "Reservation are blocked"})
		return
	}

	payload, _ := json.Marshal(reservation.Payload{ResourceID: reservation.SeatKey})
	job, err := s.q.Enqueue(ctx, reservation.SeatTopic, payload)
	if err != nil {
		s.log.Error("seat enqueue failed", zap.Error(err))
		s.json(w, http.StatusOK, map[string]string{"status": "Reservation failed"})
		return
	}
	s.json(w, http.StatusOK, map[string]any{
		"status": "Reservation in process",
		"jobId":  job.ID,
	})
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	// Workers run continuously; the route survives as an acknowledgment for
	// clients of the original service, where it started the processor.
	s.json(w, http.StatusOK, map[string]string{"status": "Queue processing"})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	s.json(w, http.StatusOK, s.cat.List())
}

func (s *Server) productDetail(w http.ResponseWriter, r *http.Request) {
	p, ok := s.product(r)
	if !ok {
		s.json(w, http.StatusOK, map[string]string{"status": "Product not found"})
		return
	}
	current, err := s.l.CurrentAvailable(r.Context(), p.Key())
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.json(w, http.StatusOK, map[string]any{
		"itemId":                   p.ItemID,
		"itemName":                 p.ItemName,
		"price":                    p.Price,
		"initialAvailableQuantity": p.InitialAvailableQuantity,
		"currentQuantity":          current,
	})
}

func (s *Server) reserveProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := s.product(r)
	if !ok {
		s.json(w, http.StatusOK, map[string]string{"status": "Product not found"})
		return
	}
	current, err := s.l.CurrentAvailable(ctx, p.Key())
	if err != nil {
		s.storeError(w, err)
		return
	}
	if current == 0 {
		s.json(w, http.StatusOK, map[string]any{
			"status": "Not enough stock available",
			"itemId": p.ItemID,
		})
		return
	}

	payload, _ := json.Marshal(reservation.Payload{ResourceID: p.Key()})
	job, err := s.q.Enqueue(ctx, reservation.StockTopic, payload)
	if err != nil {
		s.log.Error("stock enqueue failed", zap.Int64("item_id", p.ItemID), zap.Error(err))
		s.json(w, http.StatusOK, map[string]any{"status": "Reservation failed", "itemId": p.ItemID})
		return
	}
	s.json(w, http.StatusOK, map[string]any{
		"status": "Reservation in process",
		"itemId": p.ItemID,
		"jobId":  job.ID,
	})
}

func (s *Server) createJobs(w http.ResponseWriter, r *http.Request) {
	var msgs []notification.Message
	if err := json.NewDecoder(r.Body).Decode(&msgs); err != nil {
		s.json(w, http.StatusBadRequest, map[string]string{"error": "jobs is not an array"})
		return
	}
	jobs, err := notification.EnqueueBatch(r.Context(), s.q, msgs)
	if err != nil {
		s.log.Error("notification enqueue failed", zap.Error(err))
		s.json(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.json(w, http.StatusCreated, map[string]any{"jobs": jobs})
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.json(w, http.StatusNotFound, map[string]string{"status": "Job not found"})
		return
	}
	job, ok := s.q.Lookup(topic, id)
	if !ok {
		s.json(w, http.StatusNotFound, map[string]string{"status": "Job not found"})
		return
	}
	s.json(w, http.StatusOK, job)
}

func (s *Server) product(r *http.Request) (catalog.Product, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		return catalog.Product{}, false
	}
	return s.cat.ByID(id)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	s.log.Error("store unavailable", zap.Error(err))
	s.json(w, http.StatusInternalServerError, map[string]string{"status": "Store unavailable"})
}

func (s *Server) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encode failed", zap.Error(err))
	}
}
