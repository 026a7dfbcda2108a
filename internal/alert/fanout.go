package alert

// FanOut emits to every configured Emitter, so the live transport
// publisher, the websocket tap and the optional audit log can all observe
// the same alert transition without the Evaluator knowing how many
// destinations there are. A failure on any destination fails the whole
// emission so the Evaluator retries it next tick (§4.3, §7); retried
// destinations that already succeeded simply re-observe the same
// transition.
type FanOut struct {
	emitters []Emitter
}

// Emitter is the subset of evaluator.Emitter a FanOut member implements,
// restated here to avoid alert depending on the evaluator package.
type Emitter interface {
	Emit(a *Alert) error
}

// NewFanOut constructs a FanOut over the given emitters, in the order
// they should be called.
func NewFanOut(emitters ...Emitter) *FanOut {
	return &FanOut{emitters: emitters}
}

// Emit calls every configured emitter, continuing after a failure and
// returning the first error encountered.
func (f *FanOut) Emit(a *Alert) error {
	var first error
	for _, e := range f.emitters {
		if err := e.Emit(a); err != nil && first == nil {
			first = err
		}
	}
	return first
}
