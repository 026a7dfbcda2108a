// Package rulestore implements the directory-backed Rule Store: it owns
// every Rule exclusively, persists it to `<name>.rule`, maintains an
// inverted metric index so the Evaluator can bound its work, and notifies
// observers of every add/update/delete synchronously under its write lock.
package rulestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
	"github.com/r3e-labs/ruleengine/internal/errcode"
	"github.com/r3e-labs/ruleengine/internal/rule"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// Observer is notified of every durable rule-store mutation. Callbacks run
// synchronously under the Store's write lock, after the change has been
// persisted to disk; a delete callback fires before the Rule is dropped
// from memory, so Old is still a complete Rule. The Store does not
// tolerate reentrant calls back into itself from within a callback.
type Observer interface {
	OnCreate(r *rule.Rule)
	OnUpdate(old, new *rule.Rule)
	OnDelete(old *rule.Rule)
}

// Store is the single writer of its backing directory. All mutating
// methods persist before publishing the in-memory change to observers.
type Store struct {
	mu           sync.RWMutex
	dir          string
	factory      *rule.Factory
	log          *logger.Logger
	rules        map[string]*rule.Rule
	metricIndex  map[string][]string // literal metric -> rule names (single/threshold/flexible)
	patternRules map[string]*regexp.Regexp
	observers    []Observer

	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Open scans dir for `*.rule` files and returns a ready Store. Files whose
// basename doesn't match `<rule.Name>.rule` are skipped with a warning and
// left on disk untouched; the first rule to claim a given name wins and
// later duplicates are skipped the same way.
func Open(dir string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewDefault("rulestore")
	}
	s := &Store{
		dir:          dir,
		factory:      rule.NewFactory(),
		log:          log,
		rules:        make(map[string]*rule.Rule),
		metricIndex:  make(map[string][]string),
		patternRules: make(map[string]*regexp.Regexp),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create rule directory %s: %w", dir, errcode.ErrPersistence)
	}
	if err := s.scan(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scan rule directory %s: %w", s.dir, errcode.ErrPersistence)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rule") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.WithField("path", path).WithField("error", err).Warn("rule store: could not read rule file")
			continue
		}
		r, err := s.factory.Parse(data)
		if err != nil {
			s.log.WithField("path", path).WithField("error", err).Warn("rule store: rejected rule file at load")
			continue
		}
		if entry.Name() != r.FileName() {
			s.log.WithField("path", path).WithField("expected", r.FileName()).Warn("rule store: basename does not match rule name, skipping")
			continue
		}
		if _, exists := s.rules[r.Name]; exists {
			s.log.WithField("name", r.Name).Warn("rule store: duplicate rule name at load, keeping first")
			continue
		}
		s.index(r)
	}
	return nil
}

// index adds r to the in-memory maps. Caller must hold the write lock (or
// be in the single-threaded scan-at-construction phase).
func (s *Store) index(r *rule.Rule) {
	s.rules[r.Name] = r
	if r.Kind == rule.KindPattern && len(r.Metrics) == 1 {
		if re, err := regexp.Compile(r.Metrics[0]); err == nil {
			s.patternRules[r.Name] = re
			return
		}
		s.log.WithField("name", r.Name).Warn("rule store: pattern metric is not a valid regex, rule will never match")
		return
	}
	for _, m := range r.Metrics {
		s.metricIndex[m] = appendUnique(s.metricIndex[m], r.Name)
	}
}

func (s *Store) unindex(r *rule.Rule) {
	delete(s.rules, r.Name)
	delete(s.patternRules, r.Name)
	for _, m := range r.Metrics {
		s.metricIndex[m] = removeName(s.metricIndex[m], r.Name)
		if len(s.metricIndex[m]) == 0 {
			delete(s.metricIndex, m)
		}
	}
}

func appendUnique(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// Get returns a rule by name.
func (s *Store) Get(name string) (*rule.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[name]
	return r, ok
}

// List returns every rule, sorted by name for deterministic iteration
// (the Evaluator relies on this ordering, §4.3).
func (s *Store) List() []*rule.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*rule.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RulesForMetric returns the names of rules that declared metric m
// literally (single/threshold/flexible) plus the names of pattern rules
// whose regex matches m.
func (s *Store) RulesForMetric(m string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]string(nil), s.metricIndex[m]...)
	for name, re := range s.patternRules {
		if re.MatchString(m) {
			out = append(out, name)
		}
	}
	return out
}

// AddObserver registers an observer. It takes the write lock, so it is
// serialized with Add/Update/Delete.
func (s *Store) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Add parses and persists a new rule document, then publishes it to
// observers. Returns errcode.ErrDuplicate if the name already exists.
func (s *Store) Add(data []byte) (*rule.Rule, error) {
	r, err := s.factory.Parse(data)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[r.Name]; exists {
		return nil, fmt.Errorf("rule %q already exists: %w", r.Name, errcode.ErrDuplicate)
	}
	if err := s.persistNew(r); err != nil {
		return nil, err
	}
	s.index(r)
	for _, o := range s.observers {
		o.OnCreate(r)
	}
	return r, nil
}

// Update replaces oldName with the rule decoded from data, following the
// rename semantics of §4.1: the new rule is durable on disk before the old
// file and in-memory entry are removed. Returns errcode.ErrNotFound if
// oldName does not exist, errcode.ErrNameConflict if the new name is
// already taken by a different rule.
func (s *Store) Update(oldName string, data []byte) (old, updated *rule.Rule, err error) {
	newRule, err := s.factory.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[oldName]
	if !ok {
		return nil, nil, fmt.Errorf("rule %q not found: %w", oldName, errcode.ErrNotFound)
	}
	if newRule.Name != oldName {
		if _, taken := s.rules[newRule.Name]; taken {
			return nil, nil, fmt.Errorf("rule %q already exists: %w", newRule.Name, errcode.ErrNameConflict)
		}
	}

	if err := s.persistNew(newRule); err != nil {
		return nil, nil, err
	}
	if newRule.Name != oldName {
		if err := s.removeFile(oldName); err != nil {
			return nil, nil, err
		}
	}
	s.unindex(existing)
	s.index(newRule)
	for _, o := range s.observers {
		o.OnUpdate(existing, newRule)
	}
	return existing, newRule, nil
}

// Delete removes a rule and its backing file, notifying observers with the
// outgoing Rule while it is still present in memory.
func (s *Store) Delete(name string) (*rule.Rule, error) {
	return s.delete(name, true)
}

// DeleteQuiet removes a rule and its backing file without notifying
// observers. It exists for callers (the Configurator's asset-triggered
// retraction) that already know the specific retirement description and
// call the retirement hook themselves; routing that deletion back through
// the observer path as well would retire the same alert twice.
func (s *Store) DeleteQuiet(name string) (*rule.Rule, error) {
	return s.delete(name, false)
}

func (s *Store) delete(name string, notify bool) (*rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[name]
	if !ok {
		return nil, fmt.Errorf("rule %q not found: %w", name, errcode.ErrNotFound)
	}
	if err := s.removeFile(name); err != nil {
		return nil, err
	}
	if notify {
		for _, o := range s.observers {
			o.OnDelete(existing)
		}
	}
	s.unindex(existing)
	return existing, nil
}

// Touch rewrites a rule's file unchanged (bumping its mtime) without
// altering its in-memory identity (§4.6 TOUCH). It does not notify
// observers, so the rule's alerts in the Evaluator are not resolved or
// otherwise changed by it.
func (s *Store) Touch(name string) (*rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[name]
	if !ok {
		return nil, fmt.Errorf("rule %q not found: %w", name, errcode.ErrNotFound)
	}
	if err := s.persistNew(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// persistNew writes r to `<name>.rule` via write-new-then-rename, leaving
// any previously persisted state intact on failure.
func (s *Store) persistNew(r *rule.Rule) error {
	data, err := s.factory.Serialize(r)
	if err != nil {
		return fmt.Errorf("serialize rule %q: %w", r.Name, errcode.ErrPersistence)
	}
	final := filepath.Join(s.dir, r.FileName())
	tmp := final + ".new"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, errcode.ErrPersistence)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s to %s: %w", tmp, final, errcode.ErrPersistence)
	}
	return nil
}

func (s *Store) removeFile(name string) error {
	path := filepath.Join(s.dir, name+".rule")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, errcode.ErrPersistence)
	}
	return nil
}

// Name identifies the Store as a lifecycle service (internal/app/system.Service).
func (s *Store) Name() string { return "rulestore" }

// Descriptor advertises the Store to the system manager and to operator
// introspection (§5's Rule Store as the on-disk rule directory's single
// writer).
func (s *Store) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:   s.Name(),
		Domain: "rules",
		Layer:  core.LayerData,
	}.WithCapabilities("list", "get", "add", "update", "delete", "touch", "watch")
}

// Start begins watching the backing directory for out-of-band file
// changes dropped in by configuration management. A failure to start the
// watcher is logged, not fatal: the Store still serves request/reply
// mutations without live filesystem reconciliation.
func (s *Store) Start(ctx context.Context) error { return s.startWatch() }

func (s *Store) startWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.WithField("error", err).Warn("rule store: could not start directory watcher")
		return nil
	}
	if err := w.Add(s.dir); err != nil {
		s.log.WithField("error", err).Warn("rule store: could not watch rule directory")
		_ = w.Close()
		return nil
	}
	s.watcher = w
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.watchLoop()
	return nil
}

// Stop halts the directory watcher.
func (s *Store) Stop(ctx context.Context) error {
	if s.watcher == nil {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	return s.watcher.Close()
}

// watchLoop debounces bursts of fsnotify events (editors commonly emit
// several per save) and re-scans changed files: parse and basename check
// as on startup, logged-and-skipped on failure rather than propagated. A
// file for a rule name already in memory replaces that rule and is
// published to observers as an update.
func (s *Store) watchLoop() {
	defer close(s.doneCh)
	var pending = make(map[string]struct{})
	debounce := time.NewTimer(time.Hour)
	if !debounce.Stop() {
		<-debounce.C
	}
	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".rule") {
				continue
			}
			pending[ev.Name] = struct{}{}
			debounce.Reset(200 * time.Millisecond)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.WithField("error", err).Warn("rule store: directory watcher error")
		case <-debounce.C:
			s.reconcile(pending)
			pending = make(map[string]struct{})
		}
	}
}

func (s *Store) reconcile(paths map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path := range paths {
		base := filepath.Base(path)
		data, err := os.ReadFile(path)
		if err != nil {
			// file removed out-of-band; if it belonged to a known rule whose
			// file vanished, leave the in-memory entry alone (only the
			// request/reply surface removes rules from memory).
			continue
		}
		r, err := s.factory.Parse(data)
		if err != nil {
			s.log.WithField("path", path).WithField("error", err).Warn("rule store: rejected out-of-band rule edit")
			continue
		}
		if base != r.FileName() {
			s.log.WithField("path", path).WithField("expected", r.FileName()).Warn("rule store: out-of-band basename mismatch, skipping")
			continue
		}
		if existing, ok := s.rules[r.Name]; ok {
			s.unindex(existing)
			s.index(r)
			for _, o := range s.observers {
				o.OnUpdate(existing, r)
			}
			continue
		}
		s.index(r)
		for _, o := range s.observers {
			o.OnCreate(r)
		}
	}
}
