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
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/gpillon/wakeonlan/internal/wol"
)

// memoryStore keeps the last saved list in memory
type memoryStore struct {
	mu      sync.Mutex
	saved   []Target
	saves   int
	loadErr error
	saveErr error
}

func (s *memoryStore) Load(ctx context.Context) ([]Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]Target(nil), s.saved...), nil
}

func (s *memoryStore) Save(ctx context.Context, targets []Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append([]Target(nil), targets...)
	return nil
}

func (s *memoryStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func names(targets []Target) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.Name)
	}
	return out
}

var _ = Describe("Target", func() {
	It("trims fields and assigns a fresh id", func() {
		t := NewTarget("  nas ", " 192.168.1.10", "255.255.255.0 ", " AA:BB:CC:DD:EE:FF ")
		Expect(t.ID).NotTo(Equal(uuid.Nil))
		Expect(t.Name).To(Equal("nas"))
		Expect(t.IPAddress).To(Equal("192.168.1.10"))
		Expect(t.SubnetMask).To(Equal("255.255.255.0"))
		Expect(t.MACAddress).To(Equal("AA:BB:CC:DD:EE:FF"))
		Expect(t.Validate()).To(Succeed())
		Expect(NewTarget("a", "1.1.1.1", "255.0.0.0", "aabbccddeeff").ID).NotTo(Equal(t.ID))
	})

	DescribeTable("rejects invalid fields",
		func(t Target, field string, cause error) {
			err := t.Validate()
			var verr *ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Field).To(Equal(field))
			Expect(errors.Is(err, cause)).To(BeTrue())
		},
		Entry("empty name", NewTarget("  ", "192.168.1.10", "255.255.255.0", "aabbccddeeff"), "name", ErrEmptyName),
		Entry("bad ip", NewTarget("pc", "192.168.1", "255.255.255.0", "aabbccddeeff"), "ipAddress", ErrInvalidIP),
		Entry("bad subnet", NewTarget("pc", "192.168.1.10", "255.255.256.0", "aabbccddeeff"), "subnetMask", ErrInvalidIP),
		Entry("bad mac", NewTarget("pc", "192.168.1.10", "255.255.255.0", "aa:bb:cc"), "macAddress", wol.ErrInvalidMAC),
	)

	It("derives the broadcast address and the wake request", func() {
		t := NewTarget("pc", "172.16.33.7", "255.255.240.0", "aa-bb-cc-dd-ee-ff")
		Expect(t.Broadcast()).To(Equal("172.16.47.255"))
		Expect(t.WakeRequest()).To(Equal(wol.Request{
			Name:       "pc",
			IPAddress:  "172.16.33.7",
			SubnetMask: "255.255.240.0",
			MACAddress: "aa-bb-cc-dd-ee-ff",
		}))
	})
})

var _ = Describe("Registry", func() {
	var (
		ctx   context.Context
		store *memoryStore
		reg   *Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = &memoryStore{}
		reg = New(ctx, store, ctrl.Log.WithName("test-registry"))
	})

	Context("when adding targets", func() {
		It("keeps insertion order and persists after every add", func() {
			Expect(reg.Add(ctx, NewTarget("alpha", "192.168.1.2", "255.255.255.0", "aabbccddee01"))).To(Succeed())
			Expect(reg.Add(ctx, NewTarget("bravo", "192.168.1.3", "255.255.255.0", "aabbccddee02"))).To(Succeed())
			Expect(reg.Add(ctx, NewTarget("charlie", "192.168.1.4", "255.255.255.0", "aabbccddee03"))).To(Succeed())

			Expect(names(reg.List())).To(Equal([]string{"alpha", "bravo", "charlie"}))
			Expect(reg.Count()).To(Equal(3))
			Expect(store.saveCount()).To(Equal(3))
			Expect(names(store.saved)).To(Equal([]string{"alpha", "bravo", "charlie"}))
		})

		It("rejects invalid targets without persisting", func() {
			err := reg.Add(ctx, NewTarget("pc", "not-an-ip", "255.255.255.0", "aabbccddeeff"))
			Expect(errors.Is(err, ErrInvalidIP)).To(BeTrue())
			Expect(reg.Count()).To(BeZero())
			Expect(store.saveCount()).To(BeZero())
		})

		It("assigns an id to targets without one", func() {
			t := NewTarget("pc", "10.0.0.2", "255.0.0.0", "aabbccddeeff")
			t.ID = uuid.Nil
			Expect(reg.Add(ctx, t)).To(Succeed())
			Expect(reg.List()[0].ID).NotTo(Equal(uuid.Nil))
		})

		It("rejects a second target with the same id", func() {
			t := NewTarget("alpha", "192.168.1.2", "255.255.255.0", "aabbccddee01")
			Expect(reg.Add(ctx, t)).To(Succeed())
			saves := store.saveCount()

			again := t
			again.Name = "alpha-copy"
			err := reg.Add(ctx, again)
			Expect(errors.Is(err, ErrDuplicateID)).To(BeTrue())
			var verr *ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Field).To(Equal("id"))

			Expect(reg.Count()).To(Equal(1))
			Expect(store.saveCount()).To(Equal(saves))
			got, ok := reg.Get(t.ID)
			Expect(ok).To(BeTrue())
			Expect(got.Name).To(Equal("alpha"))
		})

		It("returns snapshots that do not alias the registry", func() {
			Expect(reg.Add(ctx, NewTarget("pc", "10.0.0.2", "255.0.0.0", "aabbccddeeff"))).To(Succeed())
			snapshot := reg.List()
			snapshot[0].Name = "mutated"
			Expect(reg.List()[0].Name).To(Equal("pc"))
		})
	})

	Context("when updating targets", func() {
		var original Target

		BeforeEach(func() {
			original = NewTarget("alpha", "192.168.1.2", "255.255.255.0", "aabbccddee01")
			Expect(reg.Add(ctx, original)).To(Succeed())
			Expect(reg.Add(ctx, NewTarget("bravo", "192.168.1.3", "255.255.255.0", "aabbccddee02"))).To(Succeed())
		})

		It("replaces the target in place", func() {
			changed := original
			changed.Name = "alpha-renamed"
			changed.IPAddress = "10.1.2.3"

			updated, err := reg.Update(ctx, changed)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(BeTrue())
			Expect(names(reg.List())).To(Equal([]string{"alpha-renamed", "bravo"}))

			got, ok := reg.Get(original.ID)
			Expect(ok).To(BeTrue())
			Expect(got.IPAddress).To(Equal("10.1.2.3"))
			Expect(store.saved[0].Name).To(Equal("alpha-renamed"))
		})

		It("reports unknown ids without persisting", func() {
			saves := store.saveCount()
			updated, err := reg.Update(ctx, NewTarget("ghost", "10.0.0.9", "255.0.0.0", "aabbccddeeff"))
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(BeFalse())
			Expect(store.saveCount()).To(Equal(saves))
			Expect(names(reg.List())).To(Equal([]string{"alpha", "bravo"}))
		})

		It("rejects invalid values", func() {
			changed := original
			changed.MACAddress = "zz"
			_, err := reg.Update(ctx, changed)
			Expect(errors.Is(err, wol.ErrInvalidMAC)).To(BeTrue())
			got, _ := reg.Get(original.ID)
			Expect(got.MACAddress).To(Equal("aabbccddee01"))
		})
	})

	Context("when deleting targets", func() {
		It("removes the matching target and keeps the order of the rest", func() {
			a := NewTarget("alpha", "192.168.1.2", "255.255.255.0", "aabbccddee01")
			b := NewTarget("bravo", "192.168.1.3", "255.255.255.0", "aabbccddee02")
			c := NewTarget("charlie", "192.168.1.4", "255.255.255.0", "aabbccddee03")
			for _, t := range []Target{a, b, c} {
				Expect(reg.Add(ctx, t)).To(Succeed())
			}

			Expect(reg.Delete(ctx, b.ID)).To(Equal(1))
			Expect(names(reg.List())).To(Equal([]string{"alpha", "charlie"}))
			Expect(names(store.saved)).To(Equal([]string{"alpha", "charlie"}))
		})

		It("persists even when nothing matched", func() {
			Expect(reg.Add(ctx, NewTarget("alpha", "192.168.1.2", "255.255.255.0", "aabbccddee01"))).To(Succeed())
			saves := store.saveCount()

			Expect(reg.Delete(ctx, uuid.New())).To(BeZero())
			Expect(store.saveCount()).To(Equal(saves + 1))
			Expect(reg.Count()).To(Equal(1))
		})
	})

	Context("when looking targets up", func() {
		It("finds by id or by case-insensitive name", func() {
			t := NewTarget("Office-PC", "192.168.1.2", "255.255.255.0", "aabbccddee01")
			Expect(reg.Add(ctx, t)).To(Succeed())

			byID, ok := reg.Find(t.ID.String())
			Expect(ok).To(BeTrue())
			Expect(byID.Name).To(Equal("Office-PC"))

			byName, ok := reg.Find(" office-pc ")
			Expect(ok).To(BeTrue())
			Expect(byName.ID).To(Equal(t.ID))

			_, ok = reg.Find("missing")
			Expect(ok).To(BeFalse())
		})

		It("finds by MAC address in any notation", func() {
			t := NewTarget("nas", "192.168.1.2", "255.255.255.0", "AA-BB-CC-DD-EE-01")
			Expect(reg.Add(ctx, t)).To(Succeed())

			got, ok := reg.LookupMAC("aa:bb:cc:dd:ee:01")
			Expect(ok).To(BeTrue())
			Expect(got.ID).To(Equal(t.ID))

			_, ok = reg.LookupMAC("aa:bb:cc:dd:ee:02")
			Expect(ok).To(BeFalse())
			_, ok = reg.LookupMAC("garbage")
			Expect(ok).To(BeFalse())
		})
	})

	Context("when loading persisted state", func() {
		It("restores the saved list in order", func() {
			Expect(reg.Add(ctx, NewTarget("alpha", "192.168.1.2", "255.255.255.0", "aabbccddee01"))).To(Succeed())
			Expect(reg.Add(ctx, NewTarget("bravo", "192.168.1.3", "255.255.255.0", "aabbccddee02"))).To(Succeed())

			reloaded := New(ctx, store, ctrl.Log.WithName("test-registry"))
			Expect(reloaded.List()).To(Equal(reg.List()))
		})

		It("starts empty when the store cannot be read", func() {
			store.loadErr = errors.New("corrupt data")
			reloaded := New(ctx, store, ctrl.Log.WithName("test-registry"))
			Expect(reloaded.Count()).To(BeZero())
		})

		It("drops stored targets that fail validation", func() {
			good := NewTarget("good", "192.168.1.2", "255.255.255.0", "aabbccddee01")
			bad := NewTarget("bad", "192.168.1.2", "255.255.255.0", "nope")
			store.saved = []Target{bad, good}

			reloaded := New(ctx, store, ctrl.Log.WithName("test-registry"))
			Expect(names(reloaded.List())).To(Equal([]string{"good"}))
		})

		It("keeps only the first stored target for a duplicated id", func() {
			first := NewTarget("first", "192.168.1.2", "255.255.255.0", "aabbccddee01")
			second := first
			second.Name = "second"
			other := NewTarget("other", "192.168.1.3", "255.255.255.0", "aabbccddee02")
			store.saved = []Target{first, second, other}

			reloaded := New(ctx, store, ctrl.Log.WithName("test-registry"))
			Expect(names(reloaded.List())).To(Equal([]string{"first", "other"}))
		})

		It("keeps the in-memory change when saving fails", func() {
			store.saveErr = errors.New("disk full")
			Expect(reg.Add(ctx, NewTarget("alpha", "192.168.1.2", "255.255.255.0", "aabbccddee01"))).To(Succeed())
			Expect(reg.Count()).To(Equal(1))
		})
	})

	Context("when subscribed", func() {
		It("notifies with a snapshot after every mutation", func() {
			var snapshots [][]Target
			reg.Subscribe(func(targets []Target) {
				snapshots = append(snapshots, targets)
			})

			t := NewTarget("alpha", "192.168.1.2", "255.255.255.0", "aabbccddee01")
			Expect(reg.Add(ctx, t)).To(Succeed())
			t.Name = "alpha-2"
			_, err := reg.Update(ctx, t)
			Expect(err).NotTo(HaveOccurred())
			reg.Delete(ctx, t.ID)

			Expect(snapshots).To(HaveLen(3))
			Expect(names(snapshots[0])).To(Equal([]string{"alpha"}))
			Expect(names(snapshots[1])).To(Equal([]string{"alpha-2"}))
			Expect(snapshots[2]).To(BeEmpty())
		})

		It("delivers snapshots in mutation order under concurrent writers", func() {
			var mu sync.Mutex
			var sizes []int
			reg.Subscribe(func(targets []Target) {
				mu.Lock()
				defer mu.Unlock()
				sizes = append(sizes, len(targets))
			})

			const writers = 20
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					mac := fmt.Sprintf("aabbccddee%02x", i)
					Expect(reg.Add(ctx, NewTarget(fmt.Sprintf("pc-%d", i), "10.0.0.2", "255.0.0.0", mac))).To(Succeed())
				}(i)
			}
			wg.Wait()

			mu.Lock()
			defer mu.Unlock()
			Expect(sizes).To(HaveLen(writers))
			for i, size := range sizes {
				Expect(size).To(Equal(i + 1))
			}
		})
	})
})
