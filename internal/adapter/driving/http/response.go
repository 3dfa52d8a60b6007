package httphandler

import (
	"encoding/json"
	"net/http"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeText writes a plain-text body, as the messaging platform expects on
// the webhook endpoints.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// WidgetConfigResponse is returned by the widget config probe.
type WidgetConfigResponse struct {
	OK         bool   `json:"ok"`
	TenantName string `json:"tenantName"`
	Model      string `json:"model"`
}

// WidgetMessageRequest is the JSON body of a widget message.
type WidgetMessageRequest struct {
	Key     string `json:"key" validate:"required"`
	Message string `json:"message" validate:"required,max=4000"`
}

// WidgetMessageResponse carries the generated reply, both raw and rendered.
type WidgetMessageResponse struct {
	OK        bool   `json:"ok"`
	Reply     string `json:"reply"`
	ReplyHTML string `json:"replyHtml"`
}

// webhookPayload is the subset of a messaging platform delivery the relay reads.
type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID        string           `json:"id"`
	Messaging []messagingEvent `json:"messaging"`
}

type messagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message *struct {
		Text string `json:"text"`
	} `json:"message"`
}
