package mailbox

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/r3e-labs/ruleengine/internal/configurator"
	"github.com/r3e-labs/ruleengine/internal/transport"
)

// TemplateListRequest is the envelope for the Configurator's second
// mailbox (§4.6): `LIST_TEMPLATES type=<str>`.
type TemplateListRequest struct {
	Type string `json:"type,omitempty"`
}

// TemplateListReply answers a TemplateListRequest.
type TemplateListReply struct {
	OK        bool                     `json:"ok"`
	Error     string                   `json:"error,omitempty"`
	Templates []configurator.Template `json:"templates,omitempty"`
}

// TemplateHandler answers LIST_TEMPLATES against a fixed template library.
// The library is immutable at runtime (templates are loaded once at
// startup, §4.5), so unlike Handler there is nothing to mutate here.
type TemplateHandler struct {
	templates []configurator.Template
}

// NewTemplateHandler constructs a TemplateHandler over templates.
func NewTemplateHandler(templates []configurator.Template) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// Register wires the TemplateHandler onto the "templates" mailbox of bus.
func (h *TemplateHandler) Register(ctx context.Context, bus transport.Responder) error {
	return bus.HandleMailbox(ctx, "templates", h.Handle)
}

// Handle decodes a TemplateListRequest and returns every template whose
// family matches the requested type, or all of them when Type is empty.
func (h *TemplateHandler) Handle(ctx context.Context, payload []byte) []byte {
	var req TemplateListRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		reply, _ := json.Marshal(TemplateListReply{Error: err.Error()})
		return reply
	}

	want := strings.ToLower(req.Type)
	var out []configurator.Template
	for _, t := range h.templates {
		if want != "" && !strings.EqualFold(t.Family, want) {
			continue
		}
		out = append(out, t)
	}
	reply, _ := json.Marshal(TemplateListReply{OK: true, Templates: out})
	return reply
}
