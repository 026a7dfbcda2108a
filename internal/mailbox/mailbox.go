// Package mailbox implements the request/reply command set of the
// Trigger-Mailbox actor (§4.6): LIST, GET, ADD, UPDATE, DELETE and TOUCH
// against the Rule Store, framed as small JSON envelopes over
// internal/transport's Requester/Responder contracts.
package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/r3e-labs/ruleengine/internal/alert"
	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
	"github.com/r3e-labs/ruleengine/internal/errcode"
	"github.com/r3e-labs/ruleengine/internal/rule"
	"github.com/r3e-labs/ruleengine/internal/rulestore"
	"github.com/r3e-labs/ruleengine/internal/transport"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// Request is the envelope a caller sends to the rules mailbox. Payload is
// command-specific: ADD/UPDATE carry a raw rule document, GET/DELETE/TOUCH
// carry a bare name, LIST carries filter fields.
type Request struct {
	Command  string          `json:"command"`
	Name     string          `json:"name,omitempty"`     // GET, DELETE, TOUCH; old name for UPDATE
	Element  string          `json:"element,omitempty"`  // DELETE: bulk-delete every rule attached to this asset
	Type     string          `json:"type,omitempty"`     // LIST: rule kind, or "all"
	Class    string          `json:"class,omitempty"`    // LIST: optional class filter
	Limit    int             `json:"limit,omitempty"`    // LIST: bounded by core.DefaultListLimit/MaxListLimit
	Document json.RawMessage `json:"document,omitempty"` // ADD, UPDATE: the rule document
}

// Reply is the envelope returned for every Request. At most one of Rules,
// RuleDoc or Deleted is populated on success, depending on the command
// (TOUCH populates none of them).
// Rule documents are carried in their canonical wire format (the same
// bytes a *.rule file would hold), not as a Go-reflected struct, so a
// caller sees the same JSON the Rule Store persists.
type Reply struct {
	OK      bool              `json:"ok"`
	Error   string            `json:"error,omitempty"`
	Code    int               `json:"code,omitempty"`
	Rules   []json.RawMessage `json:"rules,omitempty"`
	RuleDoc json.RawMessage   `json:"rule,omitempty"`
	Deleted []string          `json:"deleted,omitempty"`
}

// Handler answers the rules mailbox by delegating to a rulestore.Store.
type Handler struct {
	store   *rulestore.Store
	factory *rule.Factory
	log     *logger.Logger
	hooks   core.DispatchHooks
}

// NewHandler constructs a Handler over store.
func NewHandler(store *rulestore.Store, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("mailbox")
	}
	return &Handler{store: store, factory: rule.NewFactory(), log: log, hooks: core.NoopDispatchHooks}
}

// WithHooks attaches dispatch observation hooks (e.g. for latency
// histograms keyed by command) and returns h for chaining.
func (h *Handler) WithHooks(hooks core.DispatchHooks) *Handler {
	h.hooks = hooks
	return h
}

// Register wires the Handler onto the "rules" mailbox of bus, satisfying
// the Trigger-Mailbox half of §5's three-actor model.
func (h *Handler) Register(ctx context.Context, bus transport.Responder) error {
	return bus.HandleMailbox(ctx, "rules", h.Handle)
}

// Handle decodes one framed Request, dispatches it and encodes the Reply.
// A malformed envelope itself is reported as a json_error Reply rather
// than a transport-level failure, so callers always get a wire-coded
// answer (§6 "Exit codes" covers process-level failure only; mailbox
// replies are always well-formed).
func (h *Handler) Handle(ctx context.Context, payload []byte) []byte {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return encode(errReply(fmt.Errorf("mailbox: malformed request: %v: %w", err, errcode.ErrJSON)))
	}

	command := strings.ToUpper(req.Command)
	done := core.StartDispatch(ctx, h.hooks, map[string]string{"command": command})

	var reply Reply
	switch command {
	case "LIST":
		reply = h.list(req)
	case "GET":
		reply = h.get(req)
	case "ADD":
		reply = h.add(req)
	case "UPDATE":
		reply = h.update(req)
	case "DELETE":
		reply = h.delete(req)
	case "TOUCH":
		reply = h.touch(req)
	default:
		reply = errReply(errors.New("mailbox: unknown command " + req.Command))
	}

	if reply.OK {
		done(nil)
	} else {
		done(errors.New(reply.Error))
	}
	return encode(reply)
}

func (h *Handler) list(req Request) Reply {
	want := strings.ToLower(req.Type)
	limit := core.ClampLimit(req.Limit, core.DefaultListLimit, core.MaxListLimit)
	var out []json.RawMessage
	for _, r := range h.store.List() {
		if len(out) >= limit {
			break
		}
		if want != "" && want != "all" && string(r.Kind) != want {
			continue
		}
		if req.Class != "" && r.Class != req.Class {
			continue
		}
		doc, err := h.factory.Serialize(r)
		if err != nil {
			h.log.WithField("rule", r.Name).WithField("error", err).Warn("mailbox: could not serialize rule for LIST")
			continue
		}
		out = append(out, doc)
	}
	return Reply{OK: true, Rules: out}
}

func (h *Handler) get(req Request) Reply {
	r, ok := h.store.Get(req.Name)
	if !ok {
		return errReply(errcode.ErrNotFound)
	}
	doc, err := h.factory.Serialize(r)
	if err != nil {
		return errReply(err)
	}
	return Reply{OK: true, RuleDoc: doc}
}

func (h *Handler) add(req Request) Reply {
	r, err := h.store.Add(req.Document)
	if err != nil {
		return errReply(err)
	}
	doc, err := h.factory.Serialize(r)
	if err != nil {
		return errReply(err)
	}
	return Reply{OK: true, RuleDoc: doc}
}

func (h *Handler) update(req Request) Reply {
	_, updated, err := h.store.Update(req.Name, req.Document)
	if err != nil {
		return errReply(err)
	}
	doc, err := h.factory.Serialize(updated)
	if err != nil {
		return errReply(err)
	}
	return Reply{OK: true, RuleDoc: doc}
}

// delete honors both forms of §4.6's DELETE: an exact rule name, or (when
// Element is set instead of, or in addition to, Name) every rule whose
// alert-id element matches — the "bulk delete by element id" the spec
// names as RuleElementMatcher.
func (h *Handler) delete(req Request) Reply {
	if req.Element == "" {
		if _, err := h.store.Delete(req.Name); err != nil {
			return errReply(err)
		}
		return Reply{OK: true, Deleted: []string{req.Name}}
	}

	var deleted []string
	for _, r := range h.store.List() {
		_, element, ok := alert.SplitID(r.Name)
		if !ok || element != req.Element {
			continue
		}
		if _, err := h.store.Delete(r.Name); err != nil {
			h.log.WithField("rule", r.Name).WithField("error", err).Warn("mailbox: bulk delete skipped a rule")
			continue
		}
		deleted = append(deleted, r.Name)
	}
	if len(deleted) == 0 {
		return errReply(errcode.ErrNotFound)
	}
	return Reply{OK: true, Deleted: deleted}
}

func (h *Handler) touch(req Request) Reply {
	if _, err := h.store.Touch(req.Name); err != nil {
		return errReply(err)
	}
	return Reply{OK: true}
}

func errReply(err error) Reply {
	return Reply{Error: err.Error(), Code: errcode.Code(err)}
}

func encode(r Reply) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"ok":false,"error":"mailbox: could not encode reply"}`)
	}
	return data
}
