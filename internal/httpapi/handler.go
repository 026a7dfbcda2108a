// Package httpapi is a thin net/http façade over the §4.6 mailbox
// commands (LIST/GET/ADD/UPDATE/DELETE/TOUCH, LIST_TEMPLATES), plus
// /metrics and the operator-facing /v1/alerts/stream websocket feed. The
// wire contract of the mailbox itself is unchanged; this package only
// translates HTTP verbs and paths into mailbox.Request envelopes.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
	"github.com/r3e-labs/ruleengine/internal/mailbox"
	"github.com/r3e-labs/ruleengine/internal/metrics"
	"github.com/r3e-labs/ruleengine/internal/transport"
	"github.com/r3e-labs/ruleengine/pkg/config"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// DescriptorsFunc reports the descriptors of every running lifecycle
// service, typically system.Manager.Descriptors.
type DescriptorsFunc func() []core.Descriptor

type handler struct {
	bus         transport.Requester
	stream      *StreamHub
	log         *logger.Logger
	descriptors DescriptorsFunc
}

// NewHandler builds the routed mux. bus must have handlers already
// registered for the "rules" and "templates" mailboxes (mailbox.Handler,
// mailbox.TemplateHandler). descriptors may be nil, in which case
// /v1/status reports an empty component list. rateLimit bounds inbound
// request volume per client IP (§5 "Back-pressure"); the zero value
// disables it.
func NewHandler(bus transport.Requester, stream *StreamHub, descriptors DescriptorsFunc, log *logger.Logger, rateLimit config.RateLimitConfig) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{bus: bus, stream: stream, log: log, descriptors: descriptors}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", h.health)
	mux.HandleFunc("GET /v1/status", h.status)
	mux.HandleFunc("GET /v1/rules", h.listRules)
	mux.HandleFunc("POST /v1/rules", h.addRule)
	mux.HandleFunc("GET /v1/rules/{name}", h.getRule)
	mux.HandleFunc("PUT /v1/rules/{name}", h.updateRule)
	mux.HandleFunc("DELETE /v1/rules/{name}", h.deleteRule)
	mux.HandleFunc("POST /v1/rules/{name}/touch", h.touchRule)
	mux.HandleFunc("GET /v1/templates", h.listTemplates)
	mux.HandleFunc("GET /v1/alerts/stream", h.alertStream)
	rl := newRateLimiter(rateLimit)
	return withRequestID(wrapWithCORS(wrapWithRateLimit(rl, metrics.InstrumentHandler(mux))))
}

// withRequestID assigns each inbound request a correlation id (reusing one
// supplied via X-Request-Id) and echoes it back on the X-Request-Id
// response header. The id is not written to any log here.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = logger.NewRequestID()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// status reports the descriptor of every running lifecycle component, for
// operators who want to know which actors are up and what they advertise
// without scraping /metrics.
func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	var descs []core.Descriptor
	if h.descriptors != nil {
		descs = h.descriptors()
	}
	writeJSON(w, http.StatusOK, map[string]any{"components": descs})
}

func (h *handler) listRules(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	req := mailbox.Request{Command: "LIST", Type: r.URL.Query().Get("type"), Class: r.URL.Query().Get("class"), Limit: limit}
	h.roundTrip(w, r, req)
}

func (h *handler) getRule(w http.ResponseWriter, r *http.Request) {
	h.roundTrip(w, r, mailbox.Request{Command: "GET", Name: r.PathValue("name")})
}

func (h *handler) addRule(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.roundTrip(w, r, mailbox.Request{Command: "ADD", Document: body})
}

func (h *handler) updateRule(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.roundTrip(w, r, mailbox.Request{Command: "UPDATE", Name: r.PathValue("name"), Document: body})
}

func (h *handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	element := r.URL.Query().Get("element")
	if element != "" {
		name = ""
	}
	h.roundTrip(w, r, mailbox.Request{Command: "DELETE", Name: name, Element: element})
}

func (h *handler) touchRule(w http.ResponseWriter, r *http.Request) {
	h.roundTrip(w, r, mailbox.Request{Command: "TOUCH", Name: r.PathValue("name")})
}

func (h *handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	req, err := json.Marshal(mailbox.TemplateListRequest{Type: r.URL.Query().Get("type")})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	reply, err := h.bus.Request(r.Context(), "templates", req)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(reply)
}

func (h *handler) roundTrip(w http.ResponseWriter, r *http.Request, req mailbox.Request) {
	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	raw, err := h.bus.Request(r.Context(), "rules", payload)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	var reply mailbox.Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !reply.OK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusForMailboxError(reply.Error))
		_ = json.NewEncoder(w).Encode(reply)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func statusForMailboxError(msg string) int {
	if strings.Contains(msg, "not_found") {
		return http.StatusNotFound
	}
	if strings.Contains(msg, "duplicate") || strings.Contains(msg, "name_conflict") {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func readBody(r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func wrapWithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
