package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
)

// pageObject is the only webhook object type the relay handles.
const pageObject = "page"

// VerifyWebhook answers the subscription handshake. Both the hub.* parameter
// names and their bare forms are accepted.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := firstNonEmpty(q.Get("hub.mode"), q.Get("mode"))
	token := firstNonEmpty(q.Get("hub.verify_token"), q.Get("token"))
	challenge := firstNonEmpty(q.Get("hub.challenge"), q.Get("challenge"))

	ok, err := h.verifier.Verify(r.Context(), mode, token)
	if err != nil {
		h.logger.Error("webhook verification failed", "error", err)
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if !ok {
		writeText(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
		return
	}

	writeText(w, http.StatusOK, challenge)
}

// ReceiveWebhook acknowledges a delivery and hands every text message to the
// pipeline in the background.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeText(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if payload.Object != pageObject {
		writeText(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	submitted := 0
	for _, entry := range payload.Entry {
		for _, ev := range entry.Messaging {
			if ev.Message == nil || ev.Message.Text == "" {
				continue
			}
			h.pipeline.Submit(r.Context(), model.InboundEvent{
				ID:         uuid.NewString(),
				Channel:    model.ChannelMessaging,
				ExternalID: entry.ID,
				SenderID:   ev.Sender.ID,
				Text:       ev.Message.Text,
			})
			submitted++
		}
	}
	h.logger.Debug("webhook delivery accepted", "entries", len(payload.Entry), "events", submitted)

	writeText(w, http.StatusOK, "EVENT_RECEIVED")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
