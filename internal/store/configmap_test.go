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

package store

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/gpillon/wakeonlan/internal/registry"
)

var _ = Describe("ConfigMapStore", func() {
	const namespace = "wol-system"

	var (
		ctx       context.Context
		k8sClient client.Client
		targets   []registry.Target
	)

	BeforeEach(func() {
		ctx = context.Background()
		k8sClient = fake.NewClientBuilder().WithScheme(clientgoscheme.Scheme).Build()
		targets = []registry.Target{
			registry.NewTarget("nas", "192.168.1.10", "255.255.255.0", "AA:BB:CC:DD:EE:FF"),
			registry.NewTarget("office", "10.0.3.7", "255.255.240.0", "aa-bb-cc-dd-ee-01"),
		}
	})

	It("applies default name and key", func() {
		s := NewConfigMapStore(k8sClient, namespace, "", "")
		Expect(s.Name).To(Equal(DefaultConfigMapName))
		Expect(s.Key).To(Equal(DefaultKey))
	})

	It("returns an empty list when the ConfigMap does not exist", func() {
		loaded, err := NewConfigMapStore(k8sClient, namespace, "", "").Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(BeEmpty())
	})

	It("creates the ConfigMap on first save", func() {
		s := NewConfigMapStore(k8sClient, namespace, "", "")
		Expect(s.Save(ctx, targets)).To(Succeed())

		cm := &corev1.ConfigMap{}
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: DefaultConfigMapName}, cm)).To(Succeed())
		Expect(cm.Labels).To(HaveKeyWithValue("app.kubernetes.io/managed-by", "wakeonlan"))
		Expect(cm.Data).To(HaveKey(DefaultKey))

		loaded, err := s.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(targets))
	})

	It("updates the key and keeps unrelated data", func() {
		existing := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: "custom", Namespace: namespace},
			Data:       map[string]string{"other": "value"},
		}
		Expect(k8sClient.Create(ctx, existing)).To(Succeed())

		s := NewConfigMapStore(k8sClient, namespace, "custom", "targets")
		Expect(s.Save(ctx, targets)).To(Succeed())
		Expect(s.Save(ctx, targets[:1])).To(Succeed())

		cm := &corev1.ConfigMap{}
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: "custom"}, cm)).To(Succeed())
		Expect(cm.Data).To(HaveKeyWithValue("other", "value"))

		loaded, err := s.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(targets[:1]))
	})

	It("reports undecodable data", func() {
		Expect(k8sClient.Create(ctx, &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: DefaultConfigMapName, Namespace: namespace},
			Data:       map[string]string{DefaultKey: "garbage"},
		})).To(Succeed())

		_, err := NewConfigMapStore(k8sClient, namespace, "", "").Load(ctx)
		Expect(err).To(HaveOccurred())
	})
})
