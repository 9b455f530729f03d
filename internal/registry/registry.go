/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/gpillon/wakeonlan/internal/wol"
)

var (
	// ManagedTargets is a gauge for the number of registered targets
	ManagedTargets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wol_managed_targets",
			Help: "Number of targets currently registered",
		},
	)

	// SaveErrorsTotal counts failed persistence attempts
	SaveErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wol_registry_save_errors_total",
			Help: "Number of failed attempts to persist the target list",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(ManagedTargets, SaveErrorsTotal)
}

// Store persists the target list
type Store interface {
	Load(ctx context.Context) ([]Target, error)
	Save(ctx context.Context, targets []Target) error
}

// Registry is the ordered, authoritative list of targets.
// Subscribers are called in mutation order and must not mutate the registry.
type Registry struct {
	store     Store
	log       logr.Logger
	writeMu   sync.Mutex // serializes mutation, persistence and notification
	mu        sync.RWMutex
	targets   []Target
	listeners []func([]Target)
}

// New creates a registry and loads its content from store. Load failures are
// logged and leave the registry empty so a bad local state never blocks startup.
func New(ctx context.Context, store Store, log logr.Logger) *Registry {
	r := &Registry{
		store: store,
		log:   log,
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		log.Error(err, "Failed to load targets, starting with an empty list")
		loaded = nil
	}

	seen := make(map[uuid.UUID]struct{}, len(loaded))
	for _, t := range loaded {
		if err := t.Validate(); err != nil {
			log.Info("Dropping invalid stored target", "id", t.ID.String(), "name", t.Name, "reason", err.Error())
			continue
		}
		if _, dup := seen[t.ID]; dup {
			log.Info("Dropping stored target with duplicate id", "id", t.ID.String(), "name", t.Name)
			continue
		}
		seen[t.ID] = struct{}{}
		r.targets = append(r.targets, t)
	}

	ManagedTargets.Set(float64(len(r.targets)))
	log.V(1).Info("Targets loaded", "count", len(r.targets))
	return r
}

// Subscribe registers fn to be called with a snapshot after every mutation
func (r *Registry) Subscribe(fn func([]Target)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Add appends a validated target to the end of the list
func (r *Registry) Add(ctx context.Context, t Target) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	if r.indexLocked(t.ID) >= 0 {
		r.mu.Unlock()
		return &ValidationError{Field: "id", Err: fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)}
	}
	r.targets = append(r.targets, t)
	snapshot := r.persistLocked(ctx)
	r.mu.Unlock()

	r.log.Info("Target added", "id", t.ID.String(), "name", t.Name)
	r.notify(snapshot)
	return nil
}

// Update replaces the target with the same ID in place. It returns false
// without persisting when no target has that ID.
func (r *Registry) Update(ctx context.Context, t Target) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	index := r.indexLocked(t.ID)
	if index < 0 {
		r.mu.Unlock()
		r.log.V(1).Info("Update for unknown target ignored", "id", t.ID.String())
		return false, nil
	}

	r.targets[index] = t
	snapshot := r.persistLocked(ctx)
	r.mu.Unlock()

	r.log.Info("Target updated", "id", t.ID.String(), "name", t.Name)
	r.notify(snapshot)
	return true, nil
}

// Delete removes every target with the given ID and returns how many were
// removed. The list is persisted even when nothing matched.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) int {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	kept := r.targets[:0]
	removed := 0
	for _, t := range r.targets {
		if t.ID == id {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	r.targets = kept
	snapshot := r.persistLocked(ctx)
	r.mu.Unlock()

	r.log.Info("Target deleted", "id", id.String(), "removed", removed)
	r.notify(snapshot)
	return removed
}

// List returns a snapshot of the targets in insertion order
func (r *Registry) List() []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Get returns the target with the given ID
func (r *Registry) Get(id uuid.UUID) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.targets {
		if t.ID == id {
			return t, true
		}
	}
	return Target{}, false
}

// Find resolves ref as a target ID first and then as a case-insensitive name
func (r *Registry) Find(ref string) (Target, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		if t, ok := r.Get(id); ok {
			return t, true
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.targets {
		if strings.EqualFold(t.Name, ref) {
			return t, true
		}
	}
	return Target{}, false
}

// LookupMAC returns the first target whose MAC address matches mac in any
// accepted notation
func (r *Registry) LookupMAC(mac string) (Target, bool) {
	want, err := wol.ParseMAC(mac)
	if err != nil {
		return Target{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.targets {
		if got, err := wol.ParseMAC(t.MACAddress); err == nil && got == want {
			return t, true
		}
	}
	return Target{}, false
}

// Count returns the number of registered targets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}

// persistLocked saves the current list and returns the snapshot it saved.
// Must be called with r.mu held.
func (r *Registry) persistLocked(ctx context.Context) []Target {
	snapshot := r.snapshotLocked()
	ManagedTargets.Set(float64(len(snapshot)))

	if err := r.store.Save(ctx, snapshot); err != nil {
		SaveErrorsTotal.Inc()
		r.log.Error(err, "Failed to persist targets", "count", len(snapshot))
	}
	return snapshot
}

func (r *Registry) indexLocked(id uuid.UUID) int {
	for i := range r.targets {
		if r.targets[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) snapshotLocked() []Target {
	out := make([]Target, len(r.targets))
	copy(out, r.targets)
	return out
}

func (r *Registry) notify(snapshot []Target) {
	r.mu.RLock()
	listeners := make([]func([]Target), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
