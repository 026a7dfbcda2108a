// Package evaluator implements the Trigger/Evaluator (§4.3): a single
// cooperative loop that, on each tick, evaluates the current rule set
// against the metric table through the sandbox, and feeds results to the
// alert state machine.
package evaluator

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/r3e-labs/ruleengine/internal/alert"
	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
	"github.com/r3e-labs/ruleengine/internal/asset"
	"github.com/r3e-labs/ruleengine/internal/metric"
	"github.com/r3e-labs/ruleengine/internal/metrics"
	"github.com/r3e-labs/ruleengine/internal/rule"
	"github.com/r3e-labs/ruleengine/internal/rulestore"
	"github.com/r3e-labs/ruleengine/internal/sandbox"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// Emitter publishes one alert transition. Emission is best-effort: a
// transport failure is logged and the transition is retried on the next
// tick rather than blocking the loop (§4.3, §7).
type Emitter interface {
	Emit(a *alert.Alert) error
}

// DefaultTickInterval is the timer-driven metric scan period (§4.3,
// "default 30s").
const DefaultTickInterval = 30 * time.Second

// Evaluator owns the Alert table, keyed by alert id, and drives evaluation
// of every rule in the Store on each tick.
type Evaluator struct {
	store    *rulestore.Store
	metrics  *metric.Table
	assets   *asset.Database
	emitter  Emitter
	log      *logger.Logger
	interval time.Duration

	programs map[string]*sandbox.Program  // rule name -> compiled expression
	patterns map[string]*regexp.Regexp    // rule name -> compiled pattern metric regex
	alerts   map[string]*alert.Alert      // alert id -> Alert

	pending []retry // transitions that failed to emit, retried next tick
}

type retry struct {
	a *alert.Alert
}

// New constructs an Evaluator. interval <= 0 uses DefaultTickInterval.
func New(store *rulestore.Store, metrics *metric.Table, assets *asset.Database, emitter Emitter, interval time.Duration, log *logger.Logger) *Evaluator {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if log == nil {
		log = logger.NewDefault("evaluator")
	}
	return &Evaluator{
		store:    store,
		metrics:  metrics,
		assets:   assets,
		emitter:  emitter,
		log:      log,
		interval: interval,
		programs: make(map[string]*sandbox.Program),
		patterns: make(map[string]*regexp.Regexp),
		alerts:   make(map[string]*alert.Alert),
	}
}

// Name identifies the Evaluator as a lifecycle service.
func (e *Evaluator) Name() string { return "trigger-stream" }

// Descriptor advertises the Evaluator as the engine-layer component that
// ticks rules against the metric table and emits alert transitions.
func (e *Evaluator) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:   e.Name(),
		Domain: "alerts",
		Layer:  core.LayerEngine,
	}.WithCapabilities("tick", "acknowledge", "retire")
}

// Start runs the tick loop until ctx is cancelled.
func (e *Evaluator) Start(ctx context.Context) error {
	go e.run(ctx)
	return nil
}

// Stop is a no-op; the loop exits on ctx cancellation from Start's caller.
func (e *Evaluator) Stop(ctx context.Context) error { return nil }

func (e *Evaluator) run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(time.Now())
		}
	}
}

// Tick runs one evaluation pass over every rule, deterministically ordered
// by rule name then declaration-order asset iteration (§4.3), applies the
// alert state machine, and emits resulting transitions, retrying any
// transitions that failed to emit on the previous tick first.
func (e *Evaluator) Tick(now time.Time) {
	start := time.Now()
	defer func() { metrics.ObserveTick(time.Since(start)) }()

	e.retryPending()

	snap := e.metrics.Snapshot()
	rules := e.store.List() // already sorted by name

	seen := make(map[string]bool)
	evaluated := 0
	for _, r := range rules {
		if !r.Evaluates() {
			continue
		}
		evaluated++
		for _, transition := range e.evaluateRule(r, snap, now) {
			seen[transition.ID()] = true
			e.publish(transition)
		}
	}
	metrics.RecordRuleEvaluations(evaluated)
	e.sweepStale(now, seen)
}

func (e *Evaluator) evaluateRule(r *rule.Rule, snap metric.Snapshot, now time.Time) []*alert.Alert {
	prog, err := e.programFor(r)
	if err != nil {
		e.log.WithField("rule", r.Name).WithField("error", err).Warn("evaluator: rule expression failed to compile, skipping")
		return nil
	}

	var results map[string]evalOutcome
	if r.Kind == rule.KindPattern {
		re := e.patternRegexp(r)
		if re == nil {
			return nil
		}
		results = evaluatePattern(r, prog, re, snap, e.log)
	} else {
		results = evaluateAsset(r, prog, snap, e.log)
	}

	var out []*alert.Alert
	for element, res := range results {
		id := alert.ID(r.Name, element)
		existing := e.alerts[id]
		result, emit := alert.Apply(existing, r.Name, element, res.toEvalResult(), r.Results, ttlFor(r), now)
		if !emit {
			if result != nil {
				e.alerts[id] = result
			}
			continue
		}
		e.alerts[id] = result
		out = append(out, result)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Element < out[j].Element })
	return out
}

func ttlFor(r *rule.Rule) time.Duration {
	return 5 * time.Minute
}

type evalOutcome struct {
	outcome []string
	present bool
}

func (e evalOutcome) toEvalResult() alert.EvalResult {
	return alert.EvalResult{Outcome: e.outcome, Present: e.present}
}

// evaluateAsset handles single/threshold/flexible: one call per declared
// asset, arguments built from each declared metric in order.
func evaluateAsset(r *rule.Rule, prog *sandbox.Program, snap metric.Snapshot, log *logger.Logger) map[string]evalOutcome {
	out := make(map[string]evalOutcome, len(r.Assets))
	for _, a := range r.Assets {
		args := make([]any, 0, len(r.Metrics))
		skip := false
		for _, m := range r.Metrics {
			key := metric.Key(m, a)
			if _, inactive := snap.Inactive[key]; inactive {
				skip = true
				break
			}
			v, ok := snap.Active[key]
			if !ok {
				skip = true
				break
			}
			args = append(args, v)
		}
		if skip {
			continue
		}
		labels, err := prog.Call(args...)
		if err != nil {
			log.WithField("rule", r.Name).WithField("asset", a).WithField("error", err).Warn("evaluator: rule evaluation failed, skipping for this tick")
			continue
		}
		out[a] = evalOutcome{outcome: labels, present: true}
	}
	return out
}

// evaluatePattern handles pattern rules: one call per active metric key
// matching the rule's regex, element keyed by the asset substring after
// the key's '@' (patterns never produce alerts from outages, so inactive
// keys are simply never iterated).
func evaluatePattern(r *rule.Rule, prog *sandbox.Program, re *regexp.Regexp, snap metric.Snapshot, log *logger.Logger) map[string]evalOutcome {
	out := make(map[string]evalOutcome)
	for key, value := range snap.Active {
		if !re.MatchString(key) {
			continue
		}
		labels, err := prog.Call(key, value)
		if err != nil {
			log.WithField("rule", r.Name).WithField("key", key).WithField("error", err).Warn("evaluator: pattern rule evaluation failed, skipping")
			continue
		}
		out[metric.SplitAsset(key)] = evalOutcome{outcome: labels, present: true}
	}
	return out
}

func (e *Evaluator) programFor(r *rule.Rule) (*sandbox.Program, error) {
	if p, ok := e.programs[r.Name]; ok {
		return p, nil
	}
	p, err := sandbox.Compile(r.Expression, r.Variables, 0)
	if err != nil {
		return nil, err
	}
	e.programs[r.Name] = p
	return p, nil
}

// InvalidateProgram drops a rule's compiled expression, forcing
// recompilation on its next evaluation. Called by the rulestore observer
// on update, and by RetireRule on rename and delete.
func (e *Evaluator) InvalidateProgram(name string) {
	if p, ok := e.programs[name]; ok {
		p.Close()
		delete(e.programs, name)
	}
	delete(e.patterns, name)
}

// patternRegexp returns the cached compiled regex for a pattern rule's
// single declared metric, compiling and caching it on first use. Returns
// nil (logging once) if the declared pattern is not a valid regex.
func (e *Evaluator) patternRegexp(r *rule.Rule) *regexp.Regexp {
	if re, ok := e.patterns[r.Name]; ok {
		return re
	}
	if len(r.Metrics) != 1 {
		return nil
	}
	re, err := regexp.Compile(r.Metrics[0])
	if err != nil {
		e.log.WithField("rule", r.Name).WithField("error", err).Warn("evaluator: pattern metric is not a valid regex")
		return nil
	}
	e.patterns[r.Name] = re
	return re
}

func (e *Evaluator) publish(a *alert.Alert) {
	metrics.RecordAlertTransition(string(a.State))
	if err := e.emitter.Emit(a); err != nil {
		e.log.WithField("alert", a.ID()).WithField("error", err).Warn("evaluator: emit failed, will retry next tick")
		e.pending = append(e.pending, retry{a: a})
	}
}

func (e *Evaluator) retryPending() {
	if len(e.pending) == 0 {
		return
	}
	remaining := e.pending[:0]
	for _, p := range e.pending {
		if err := e.emitter.Emit(p.a); err != nil {
			remaining = append(remaining, p)
			continue
		}
	}
	e.pending = remaining
}

// sweepStale applies §4.4 expiry to every alert not refreshed this tick.
func (e *Evaluator) sweepStale(now time.Time, freshIDs map[string]bool) {
	for id, a := range e.alerts {
		if freshIDs[id] {
			continue
		}
		stale, emit, drop := a.Expire(now)
		if !emit {
			continue
		}
		e.publish(stale)
		if drop {
			delete(e.alerts, id)
		} else {
			e.alerts[id] = stale
		}
	}
}

// RetireRule forcibly resolves every alert attached to ruleName with the
// given description (asset retirement, rule deletion/rename — §4.1/§4.4).
func (e *Evaluator) RetireRule(ruleName, description string, now time.Time) {
	for id, a := range e.alerts {
		if a.RuleName != ruleName {
			continue
		}
		retired := a.Retire(description, now)
		e.alerts[id] = retired
		e.publish(retired)
	}
	e.InvalidateProgram(ruleName)
}

// Acknowledge applies an operator ACK-*/ACTIVE request to an existing
// alert by id.
func (e *Evaluator) Acknowledge(id string, state alert.State) error {
	a, ok := e.alerts[id]
	if !ok {
		return nil
	}
	return a.Acknowledge(state)
}
