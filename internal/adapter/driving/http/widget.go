package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ericfisherdev/inboxrelay/internal/application"
	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
)

// WidgetConfig returns the display configuration for an enabled widget key.
func (h *Handler) WidgetConfig(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing key")
		return
	}

	tenant, err := h.tenants.GetByWidgetKey(r.Context(), key)
	if err != nil {
		h.logger.Error("failed to load widget tenant", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if tenant == nil || !tenant.Enabled {
		writeError(w, http.StatusNotFound, "widget not found")
		return
	}

	modelID := tenant.AIModel
	if modelID == "" {
		modelID = h.defaultModel
	}

	writeJSON(w, http.StatusOK, WidgetConfigResponse{
		OK:         true,
		TenantName: tenant.Name,
		Model:      modelID,
	})
}

// WidgetMessage runs one widget exchange synchronously and returns the reply.
func (h *Handler) WidgetMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req WidgetMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	res := h.pipeline.Run(r.Context(), model.InboundEvent{
		ID:        uuid.NewString(),
		Channel:   model.ChannelWidget,
		WidgetKey: req.Key,
		Origin:    r.Header.Get("Origin"),
		Text:      req.Message,
	})

	if !res.Dropped() {
		writeJSON(w, http.StatusOK, WidgetMessageResponse{
			OK:        true,
			Reply:     res.Reply,
			ReplyHTML: renderReply(res.Reply),
		})
		return
	}

	switch {
	case res.Reason == application.ReasonTenantNotFound, res.Reason == application.ReasonTenantDisabled:
		writeError(w, http.StatusNotFound, "widget not found")
	case res.Reason == application.ReasonOriginNotAllowed:
		writeError(w, http.StatusForbidden, "origin not allowed")
	case res.IsPrecondition():
		writeError(w, http.StatusInternalServerError, "missing provider key")
	default:
		writeError(w, http.StatusInternalServerError, "reply generation failed")
	}
}

// validationMessage names the first field that failed validation, using its
// JSON name.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "missing " + fe.Field()
	case "max":
		return fmt.Sprintf("%s exceeds %s characters", fe.Field(), fe.Param())
	default:
		return "invalid " + fe.Field()
	}
}
