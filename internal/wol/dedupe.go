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

package wol

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// DefaultDedupeWindow is how long repeated packets for one MAC are folded together
const DefaultDedupeWindow = 10 * time.Second

// Deduplicator folds bursts of packets for the same MAC address. Most senders
// emit several copies of a magic packet per wake request.
type Deduplicator struct {
	window  time.Duration
	log     logr.Logger
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]*dedupeEntry
}

type dedupeEntry struct {
	lastSeen time.Time
	count    int
}

// NewDeduplicator creates a deduplicator. A zero or negative window disables folding.
func NewDeduplicator(window time.Duration, log logr.Logger) *Deduplicator {
	return &Deduplicator{
		window:  window,
		log:     log,
		now:     time.Now,
		entries: make(map[string]*dedupeEntry),
	}
}

// Observe records a packet for mac and reports whether it belongs to a burst
// already seen within the window, along with the size of that burst.
func (d *Deduplicator) Observe(mac string) (bool, int) {
	if d.window <= 0 {
		return false, 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if entry, exists := d.entries[mac]; exists && now.Sub(entry.lastSeen) < d.window {
		entry.count++
		entry.lastSeen = now
		return true, entry.count
	}

	d.entries[mac] = &dedupeEntry{lastSeen: now, count: 1}
	return false, 1
}

// StartCleanup evicts stale entries until ctx is cancelled
func (d *Deduplicator) StartCleanup(ctx context.Context) {
	if d.window <= 0 {
		return
	}

	ticker := time.NewTicker(d.window * 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cleanup()
		}
	}
}

func (d *Deduplicator) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	cleaned := 0
	for mac, entry := range d.entries {
		if now.Sub(entry.lastSeen) > d.window*2 {
			delete(d.entries, mac)
			cleaned++
		}
	}

	if cleaned > 0 {
		d.log.V(1).Info("Cleaned up dedupe cache", "cleaned", cleaned, "remaining", len(d.entries))
	}
}

// Size returns the number of tracked MAC addresses
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
