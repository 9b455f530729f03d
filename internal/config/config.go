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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys understood by Load. Environment variables use the WAKEONLAN_ prefix
// with dots and dashes replaced by underscores (e.g. WAKEONLAN_STORE_PATH).
const (
	StoreBackend      = "store.backend"
	StorePath         = "store.path"
	StoreNamespace    = "store.namespace"
	StoreName         = "store.name"
	StoreKey          = "store.key"
	ServeBindAddress  = "serve.bind-address"
	ListenAddress     = "listen.address"
	ListenDedupe      = "listen.dedupe-window"
	EnvPrefix         = "WAKEONLAN"
	BackendFile       = "file"
	BackendConfigMap  = "configmap"
	defaultTargetFile = "targets.json"
)

// Config is the resolved runtime configuration
type Config struct {
	StoreBackend   string
	StorePath      string
	StoreNamespace string
	StoreName      string
	StoreKey       string
	BindAddress    string
	ListenAddress  string
	DedupeWindow   time.Duration
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(StoreBackend, BackendFile)
	v.SetDefault(StorePath, DefaultStorePath())
	v.SetDefault(StoreNamespace, "default")
	v.SetDefault(StoreName, "wakeonlan-targets")
	v.SetDefault(StoreKey, "WOLTargets")
	v.SetDefault(ServeBindAddress, ":8080")
	v.SetDefault(ListenAddress, ":9")
	v.SetDefault(ListenDedupe, 10*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// DefaultStorePath returns the per-user location of the target file
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "wakeonlan", defaultTargetFile)
}

// Load reads and validates the configuration from v
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		StoreBackend:   strings.ToLower(strings.TrimSpace(v.GetString(StoreBackend))),
		StorePath:      strings.TrimSpace(v.GetString(StorePath)),
		StoreNamespace: strings.TrimSpace(v.GetString(StoreNamespace)),
		StoreName:      strings.TrimSpace(v.GetString(StoreName)),
		StoreKey:       strings.TrimSpace(v.GetString(StoreKey)),
		BindAddress:    strings.TrimSpace(v.GetString(ServeBindAddress)),
		ListenAddress:  strings.TrimSpace(v.GetString(ListenAddress)),
		DedupeWindow:   v.GetDuration(ListenDedupe),
	}

	switch cfg.StoreBackend {
	case BackendFile:
		if cfg.StorePath == "" {
			return cfg, fmt.Errorf("%s: must not be empty for the %s backend", StorePath, BackendFile)
		}
	case BackendConfigMap:
		if cfg.StoreNamespace == "" || cfg.StoreName == "" {
			return cfg, fmt.Errorf("%s and %s are required for the %s backend", StoreNamespace, StoreName, BackendConfigMap)
		}
	default:
		return cfg, fmt.Errorf("%s: unknown backend %q (want %s or %s)", StoreBackend, cfg.StoreBackend, BackendFile, BackendConfigMap)
	}

	if cfg.DedupeWindow < 0 {
		return cfg, fmt.Errorf("%s: must not be negative", ListenDedupe)
	}

	if cfg.StoreKey == "" {
		return cfg, fmt.Errorf("%s: must not be empty", StoreKey)
	}

	return cfg, nil
}
