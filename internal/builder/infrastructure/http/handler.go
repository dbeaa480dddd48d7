package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/burger-builder/internal/builder/application"
	"github.com/dmehra2102/burger-builder/internal/builder/domain"
	"github.com/dmehra2102/burger-builder/pkg/outbox"
	"github.com/dmehra2102/burger-builder/pkg/tracing"
)

const maxBodyBytes = 1 << 16

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	tracer   trace.Tracer
	validate *validator.Validate
	origins  []string
}

func NewHandler(log *slog.Logger, service *application.Service, originPatterns []string) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("header_key", func(fl validator.FieldLevel) bool {
		return !outbox.ReservedHeader(fl.Field().String())
	})
	return &Handler{
		log:      log,
		service:  service,
		tracer:   otel.Tracer("builder-http"),
		validate: v,
		origins:  originPatterns,
	}
}

type confirmReq struct {
	Customer string            `json:"customer" validate:"omitempty,max=100"`
	Headers  map[string]string `json:"headers" validate:"omitempty,max=16,dive,keys,min=1,max=64,header_key,endkeys,max=256"`
}

type sessionResp struct {
	SessionID string            `json:"session_id"`
	State     domain.OrderState `json:"state"`
}

type confirmResp struct {
	State   domain.OrderState `json:"state"`
	Notice  string            `json:"notice"`
	OrderID string            `json:"order_id,omitempty"`
}

type menuResp struct {
	BasePrice   string            `json:"base_price"`
	Ingredients []domain.MenuItem `json:"ingredients"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/menu", h.getMenu)
	r.Get("/orders/{id}", h.getOrder)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Get("/view", h.getView)
			r.Get("/events", h.streamEvents)
			r.Post("/ingredients/{ingredient}", h.addIngredient)
			r.Delete("/ingredients/{ingredient}", h.removeIngredient)
			r.Post("/purchase", h.openPurchase)
			r.Delete("/purchase", h.cancelPurchase)
			r.Post("/purchase/confirm", h.confirmPurchase)
		})
	})

	return r
}

func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	menu := h.service.Menu()
	writeJSON(w, http.StatusOK, menuResp{
		BasePrice:   domain.FormatPrice(menu.BasePrice()),
		Ingredients: menu.Items(),
	})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateSession")
	defer span.End()

	id, st, err := h.service.NewSession(ctx)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	span.SetAttributes(attribute.String("session.id", id))
	writeJSON(w, http.StatusCreated, sessionResp{SessionID: id, State: st})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getView(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) addIngredient(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, "AddIngredient", func(ctx context.Context, id string) (domain.OrderState, error) {
		return h.service.AddIngredient(ctx, id, domain.Ingredient(chi.URLParam(r, "ingredient")))
	})
}

func (h *Handler) removeIngredient(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, "RemoveIngredient", func(ctx context.Context, id string) (domain.OrderState, error) {
		return h.service.RemoveIngredient(ctx, id, domain.Ingredient(chi.URLParam(r, "ingredient")))
	})
}

func (h *Handler) openPurchase(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, "OpenPurchase", h.service.OpenPurchase)
}

func (h *Handler) cancelPurchase(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, "CancelPurchase", h.service.CancelPurchase)
}

func (h *Handler) confirmPurchase(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmPurchase")
	defer span.End()
	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("session.id", id))

	var req confirmReq
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	traceparent := r.Header.Get(tracing.TraceparentHeader)
	if traceparent == "" {
		traceparent = tracing.Traceparent(ctx)
	}

	c, err := h.service.ConfirmPurchase(ctx, id, application.ConfirmRequest{
		Customer:       req.Customer,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Headers:        req.Headers,
		Traceparent:    traceparent,
	})
	if err != nil {
		h.fail(w, span, err)
		return
	}

	resp := confirmResp{State: c.State, Notice: c.Notice}
	status := http.StatusOK
	if c.Order != nil {
		resp.OrderID = c.Order.ID
		status = http.StatusAccepted
		span.SetAttributes(attribute.String("order.id", c.Order.ID))
	}
	writeJSON(w, status, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// intent runs one state-changing operation inside a span and writes the
// resulting state.
func (h *Handler) intent(w http.ResponseWriter, r *http.Request, name string, fn func(ctx context.Context, id string) (domain.OrderState, error)) {
	ctx, span := h.tracer.Start(r.Context(), name)
	defer span.End()
	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("session.id", id))

	st, err := fn(ctx, id)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, err error) {
	status := statusFor(err)
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownIngredient):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrSessionNotFound), errors.Is(err, application.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrSessionConflict), errors.Is(err, application.ErrDuplicateConfirmation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
