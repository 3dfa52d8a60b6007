// Package httphandler is the HTTP driving adapter: the messaging webhook,
// the website widget API and the health probe.
package httphandler

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ericfisherdev/inboxrelay/internal/application"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 1 << 20

// Handler is the HTTP driving adapter.
type Handler struct {
	pipeline     *application.Pipeline
	verifier     *application.WebhookVerifier
	tenants      driven.TenantStore
	defaultModel string
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	pipeline *application.Pipeline,
	verifier *application.WebhookVerifier,
	tenants driven.TenantStore,
	defaultModel string,
	logger *slog.Logger,
) *Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &Handler{
		pipeline:     pipeline,
		verifier:     verifier,
		tenants:      tenants,
		defaultModel: defaultModel,
		validate:     validate,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with tracing, logging, recovery and CORS middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /webhook", h.VerifyWebhook)
	mux.HandleFunc("POST /webhook", h.ReceiveWebhook)
	mux.HandleFunc("GET /api/widget/config", h.WidgetConfig)
	mux.HandleFunc("POST /api/widget/message", h.WidgetMessage)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = corsMiddleware(wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return otelhttp.NewHandler(wrapped, "inboxrelay")
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
