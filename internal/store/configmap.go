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
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/gpillon/wakeonlan/internal/registry"
)

const (
	// DefaultConfigMapName is the ConfigMap used when none is configured
	DefaultConfigMapName = "wakeonlan-targets"
	// DefaultKey is the data key holding the encoded target list
	DefaultKey = "WOLTargets"
)

// ConfigMapStore keeps the target list as JSON under one key of a ConfigMap
type ConfigMapStore struct {
	client.Client
	Namespace string
	Name      string
	Key       string
}

// NewConfigMapStore creates a ConfigMap-backed store
func NewConfigMapStore(c client.Client, namespace, name, key string) *ConfigMapStore {
	if name == "" {
		name = DefaultConfigMapName
	}
	if key == "" {
		key = DefaultKey
	}
	return &ConfigMapStore{
		Client:    c,
		Namespace: namespace,
		Name:      name,
		Key:       key,
	}
}

// Load reads the target list. A missing ConfigMap or key yields an empty list.
func (s *ConfigMapStore) Load(ctx context.Context) ([]registry.Target, error) {
	cm := &corev1.ConfigMap{}
	if err := s.Get(ctx, s.objectKey(), cm); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ConfigMap %s: %w", s.objectKey(), err)
	}

	data, ok := cm.Data[s.Key]
	if !ok || data == "" {
		return nil, nil
	}

	var targets []registry.Target
	if err := json.Unmarshal([]byte(data), &targets); err != nil {
		return nil, fmt.Errorf("failed to decode key %q of ConfigMap %s: %w", s.Key, s.objectKey(), err)
	}
	return targets, nil
}

// Save writes the target list, creating the ConfigMap when needed
func (s *ConfigMapStore) Save(ctx context.Context, targets []registry.Target) error {
	if targets == nil {
		targets = []registry.Target{}
	}
	b, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("failed to encode targets: %w", err)
	}

	cm := &corev1.ConfigMap{}
	err = s.Get(ctx, s.objectKey(), cm)
	if errors.IsNotFound(err) {
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      s.Name,
				Namespace: s.Namespace,
				Labels: map[string]string{
					"app.kubernetes.io/name":       "wakeonlan",
					"app.kubernetes.io/managed-by": "wakeonlan",
				},
			},
			Data: map[string]string{s.Key: string(b)},
		}
		if err := s.Create(ctx, cm); err != nil {
			return fmt.Errorf("failed to create ConfigMap %s: %w", s.objectKey(), err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get ConfigMap %s: %w", s.objectKey(), err)
	}

	if cm.Data == nil {
		cm.Data = make(map[string]string)
	}
	cm.Data[s.Key] = string(b)
	if err := s.Update(ctx, cm); err != nil {
		return fmt.Errorf("failed to update ConfigMap %s: %w", s.objectKey(), err)
	}
	return nil
}

func (s *ConfigMapStore) objectKey() types.NamespacedName {
	return types.NamespacedName{Namespace: s.Namespace, Name: s.Name}
}
