package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/room-billing-ledger/internal/ledger"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
)

type handler struct {
	ledger *ledger.Ledger
	log    logrus.FieldLogger
}

type roomView struct {
	Room          string               `json:"room"`
	Charges       []models.Charge      `json:"charges"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	TotalPaid     decimal.Decimal      `json:"total_paid"`
	Balance       decimal.Decimal      `json:"balance"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	StatusLabel   string               `json:"status_label"`
	UpdatedAt     *time.Time           `json:"updated_at,omitempty"`
}

func newRoomView(a models.RoomAccount) roomView {
	v := roomView{
		Room:          a.Room,
		Charges:       a.Charges,
		TotalAmount:   a.TotalAmount,
		TotalPaid:     a.TotalPaid,
		Balance:       a.Balance(),
		PaymentStatus: a.PaymentStatus,
		StatusLabel:   a.StatusLabel(),
	}
	if !a.UpdatedAt.IsZero() {
		updated := a.UpdatedAt
		v.UpdatedAt = &updated
	}
	return v
}

type amountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type consumptionRequest struct {
	Consumption *decimal.Decimal `json:"consumption"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// NewRouter exposes the ledger over HTTP. gatherer backs /metrics.
func NewRouter(l *ledger.Ledger, gatherer prometheus.Gatherer, log logrus.FieldLogger) http.Handler {
	h := &handler{ledger: l, log: log}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(log))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	router.Route("/rooms", func(r chi.Router) {
		r.Get("/", h.listRooms)
		r.Delete("/", h.resetAll)

		r.Route("/{room}", func(r chi.Router) {
			r.Get("/", h.getRoom)
			r.Delete("/", h.resetRoom)
			r.Post("/rent", h.addRent)
			r.Put("/rent", h.editRent)
			r.Post("/electricity", h.addElectricity)
			r.Post("/water", h.addWater)
			r.Post("/services", h.addService)
			r.Put("/status", h.setStatus)
		})
	})

	return cors.Default().Handler(router)
}

func (h *handler) listRooms(w http.ResponseWriter, r *http.Request) {
	accounts := h.ledger.Accounts()
	views := make([]roomView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newRoomView(a))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) getRoom(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.Account(roomParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRoomView(account))
}

func (h *handler) addRent(w http.ResponseWriter, r *http.Request) {
	h.withAmount(w, r, h.ledger.AddRent)
}

func (h *handler) editRent(w http.ResponseWriter, r *http.Request) {
	h.withAmount(w, r, h.ledger.EditRent)
}

func (h *handler) addElectricity(w http.ResponseWriter, r *http.Request) {
	h.withConsumption(w, r, h.ledger.AddElectricity)
}

func (h *handler) addWater(w http.ResponseWriter, r *http.Request) {
	h.withConsumption(w, r, h.ledger.AddWater)
}

func (h *handler) addService(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusCreated)(h.ledger.AddOtherService(r.Context(), roomParam(r)))
}

func (h *handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	status, err := models.ParsePaymentStatus(req.Status)
	if err != nil {
		http.Error(w, ledger.ErrInvalidStatus.Error(), http.StatusBadRequest)
		return
	}
	h.respond(w, http.StatusOK)(h.ledger.SetPaymentStatus(r.Context(), roomParam(r), status))
}

func (h *handler) resetRoom(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK)(h.ledger.ResetRoom(r.Context(), roomParam(r)))
}

func (h *handler) resetAll(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.ResetAll(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.listRooms(w, r)
}

type amountOp func(ctx context.Context, room string, amount decimal.Decimal) (models.RoomAccount, error)

func (h *handler) withAmount(w http.ResponseWriter, r *http.Request, op amountOp) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	h.respond(w, status)(op(r.Context(), roomParam(r), *req.Amount))
}

func (h *handler) withConsumption(w http.ResponseWriter, r *http.Request, op amountOp) {
	var req consumptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Consumption == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.respond(w, http.StatusCreated)(op(r.Context(), roomParam(r), *req.Consumption))
}

func (h *handler) respond(w http.ResponseWriter, status int) func(models.RoomAccount, error) {
	return func(account models.RoomAccount, err error) {
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, status, newRoomView(account))
	}
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnknownRoom):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrDuplicateCharge),
		errors.Is(err, ledger.ErrMissingCharge),
		errors.Is(err, ledger.ErrIncompleteCharges),
		errors.Is(err, ledger.ErrAlreadySettled):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.WithError(err).Error("unexpected ledger error")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// roomParam returns the decoded room identifier. chi matches on RawPath when
// the request carries one, and only then is the parameter still escaped.
func roomParam(r *http.Request) string {
	param := chi.URLParam(r, "room")
	if r.URL.RawPath == "" {
		return param
	}
	if room, err := url.PathUnescape(param); err == nil {
		return room
	}
	return param
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": chimiddleware.GetReqID(r.Context()),
			}).Info("request handled")
		})
	}
}
