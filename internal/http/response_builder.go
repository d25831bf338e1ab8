package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
)

// HX-Trigger event names the page listens for.
const (
	eventGoalCreated      = "goal:created"
	eventFormReset        = "form:reset"
	eventDashboardRefresh = "dashboard:refresh"
	eventNotification     = "show-notification"
)

// NotificationType selects the toast style in app.js.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

var notificationDuration = map[NotificationType]int{
	NotificationSuccess: 3000,
	NotificationError:   5000,
}

// HTMXResponse collects status, headers, HX-Trigger events and body, and
// writes them in one go.
type HTMXResponse struct {
	status   int
	header   http.Header
	triggers map[string]any
	body     []byte
}

func NewHTMXResponse() *HTMXResponse {
	return &HTMXResponse{
		status:   http.StatusOK,
		header:   make(http.Header),
		triggers: make(map[string]any),
	}
}

func (b *HTMXResponse) Status(code int) *HTMXResponse {
	b.status = code
	return b
}

// Trigger adds an HX-Trigger event. A later event with the same name wins.
func (b *HTMXResponse) Trigger(name string, detail any) *HTMXResponse {
	b.triggers[name] = detail
	return b
}

func (b *HTMXResponse) TriggerGoalCreated(id int64, category, date string) *HTMXResponse {
	return b.Trigger(eventGoalCreated, map[string]any{"id": id, "category": category, "date": date})
}

func (b *HTMXResponse) TriggerFormReset() *HTMXResponse {
	return b.Trigger(eventFormReset, struct{}{})
}

// TriggerDashboardRefresh asks the dashboard partial to reload for [start, end].
func (b *HTMXResponse) TriggerDashboardRefresh(start, end string) *HTMXResponse {
	return b.Trigger(eventDashboardRefresh, map[string]string{"start": start, "end": end})
}

func (b *HTMXResponse) TriggerNotification(kind NotificationType, message string) *HTMXResponse {
	return b.Trigger(eventNotification, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": notificationDuration[kind],
	})
}

func (b *HTMXResponse) TriggerSuccessNotification(message string) *HTMXResponse {
	return b.TriggerNotification(NotificationSuccess, message)
}

func (b *HTMXResponse) TriggerErrorNotification(message string) *HTMXResponse {
	return b.TriggerNotification(NotificationError, message)
}

func (b *HTMXResponse) Header(name, value string) *HTMXResponse {
	b.header.Set(name, value)
	return b
}

// HTML sets an HTML fragment as the body.
func (b *HTMXResponse) HTML(fragment string) *HTMXResponse {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = []byte(fragment)
	return b
}

func (b *HTMXResponse) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.triggers) > 0 {
		if payload, err := json.Marshal(b.triggers); err == nil {
			h.Set("HX-Trigger", string(payload))
		}
	}

	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message, escaped, inside an error div.
func ErrorResponse(status int, message string) *HTMXResponse {
	return NewHTMXResponse().
		Status(status).
		HTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponse {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTMXResponse {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError(retryAfterSeconds int) *HTMXResponse {
	return ErrorResponse(http.StatusTooManyRequests, "Too many goal submissions. Try again in a minute.").
		Header("Retry-After", strconv.Itoa(retryAfterSeconds))
}

func MethodNotAllowedError(allowed string) *HTMXResponse {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowed)
}
