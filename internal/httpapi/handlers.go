package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Proton-105/pricechek-rider/internal/customer"
	"github.com/Proton-105/pricechek-rider/internal/ussd"
	"github.com/Proton-105/pricechek-rider/pkg/logger"
)

const (
	liveStatus      = "PriceChekRider API is live"
	tooManyRequests = "Too many requests. Please try again shortly."
	defaultPage     = 50
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": liveStatus})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.probes == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ready", "components": map[string]string{}})
		return
	}

	components, err := h.probes.Readiness(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":     "unavailable",
			"error":      err.Error(),
			"components": components,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ready", "components": components})
}

// USSD handles the JSON callback and wraps the screen as {"response": "CON ..."}.
func (h *Handler) USSD(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUSSDJSON(r)
	if err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "ussd callback",
		slog.String("phone", logger.MaskPhone(req.PhoneNumber)),
		slog.String("session_id", req.SessionID),
	)

	screen := h.ussd.Evaluate(r.Context(), req.PhoneNumber, req.Text)
	respondJSON(w, http.StatusOK, map[string]string{"response": screen.String()})
}

// USSDGateway handles the gateway's form callback and answers in plain text.
func (h *Handler) USSDGateway(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUSSDForm(r)
	if err != nil {
		respondText(w, http.StatusBadRequest, ussd.Screen{Kind: ussd.Terminate, Text: err.Error()}.String())
		return
	}

	h.log.InfoContext(r.Context(), "ussd gateway callback",
		slog.String("phone", logger.MaskPhone(req.PhoneNumber)),
		slog.String("session_id", req.SessionID),
		slog.String("service_code", req.ServiceCode),
	)

	screen := h.ussd.Evaluate(r.Context(), req.PhoneNumber, req.Text)
	respondText(w, http.StatusOK, screen.String())
}

// IncomingSMS acknowledges the gateway callback; the customer's reply goes out as a separate SMS.
func (h *Handler) IncomingSMS(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSMS(r)
	if err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.sms.Handle(r.Context(), req.inbound())
	if err != nil {
		h.errs.Handle(r.Context(), err)
		respondDetail(w, http.StatusInternalServerError, fmt.Sprintf("Error processing SMS: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": outcome.Message(),
	})
}

func (h *Handler) ussdJSONLimited(w http.ResponseWriter, r *http.Request) {
	screen := ussd.Screen{Kind: ussd.Terminate, Text: tooManyRequests}
	respondJSON(w, http.StatusOK, map[string]string{"response": screen.String()})
}

func (h *Handler) ussdFormLimited(w http.ResponseWriter, r *http.Request) {
	respondText(w, http.StatusOK, ussd.Screen{Kind: ussd.Terminate, Text: tooManyRequests}.String())
}

// smsLimited acknowledges with 200 so the gateway does not redeliver, and sends nothing.
func (h *Handler) smsLimited(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "rate_limited",
		"message": tooManyRequests,
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)

	customers, err := h.admin.List(r.Context(), limit, offset)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, customers)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	c, err := h.admin.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			respondDetail(w, http.StatusNotFound, "User not found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)

	orders, err := h.admin.Orders(r.Context(), limit, offset)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := h.admin.Order(r.Context(), id)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			respondDetail(w, http.StatusNotFound, "Order not found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	message, _ := h.errs.Handle(r.Context(), err)
	respondDetail(w, http.StatusInternalServerError, message)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondDetail(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// page reads limit and offset query parameters; the repository clamps the limit.
func page(r *http.Request) (int, int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = defaultPage
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
