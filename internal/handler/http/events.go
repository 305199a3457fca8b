package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/backoffice-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/backoffice-payroll-go/internal/pkg/sse"
)

const keepaliveInterval = 30 * time.Second

type EventHandler interface {
	StreamSalaryPayments(w http.ResponseWriter, r *http.Request)
}

type eventHandlerImpl struct {
	hub *sse.Hub
}

func NewEventHandler(hub *sse.Hub) EventHandler {
	return &eventHandlerImpl{hub: hub}
}

// StreamSalaryPayments pushes ledger changes so open payroll views can refetch
func (h *eventHandlerImpl) StreamSalaryPayments(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(payroll.TopicSalaryPayments)
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"topic\":%q}\n\n", payroll.TopicSalaryPayments)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				slog.Error("Failed to marshal SSE event", "event", event.Event, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
