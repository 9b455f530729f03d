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

package main

import (
	"context"
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/gpillon/wakeonlan/internal/config"
	"github.com/gpillon/wakeonlan/internal/registry"
	"github.com/gpillon/wakeonlan/internal/store"
	"github.com/gpillon/wakeonlan/internal/wol"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags have been parsed
type app struct {
	v   *viper.Viper
	cfg config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	opts := zap.Options{
		Development: false,
	}

	root := &cobra.Command{
		Use:           "wakeonlan",
		Short:         "Register network devices and wake them with Wake-on-LAN magic packets",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

			cfg, err := config.Load(a.v)
			if err != nil {
				setupLog.Error(err, "Invalid configuration")
				return err
			}
			a.cfg = cfg
			setupLog.V(1).Info("Configuration loaded",
				"backend", cfg.StoreBackend,
				"path", cfg.StorePath,
				"configMap", cfg.StoreNamespace+"/"+cfg.StoreName)
			return nil
		},
	}

	goFlags := goflag.NewFlagSet("zap", goflag.ExitOnError)
	opts.BindFlags(goFlags)
	root.PersistentFlags().AddGoFlagSet(goFlags)

	flags := root.PersistentFlags()
	flags.String("store-backend", config.BackendFile, "Persistence backend: file or configmap")
	flags.String("store-path", config.DefaultStorePath(), "Target file (JSON, or YAML for .yaml/.yml)")
	flags.String("store-namespace", "default", "Namespace of the targets ConfigMap")
	flags.String("store-name", store.DefaultConfigMapName, "Name of the targets ConfigMap")
	flags.String("store-key", store.DefaultKey, "Data key holding the targets")
	utilruntime.Must(a.v.BindPFlag(config.StoreBackend, flags.Lookup("store-backend")))
	utilruntime.Must(a.v.BindPFlag(config.StorePath, flags.Lookup("store-path")))
	utilruntime.Must(a.v.BindPFlag(config.StoreNamespace, flags.Lookup("store-namespace")))
	utilruntime.Must(a.v.BindPFlag(config.StoreName, flags.Lookup("store-name")))
	utilruntime.Must(a.v.BindPFlag(config.StoreKey, flags.Lookup("store-key")))

	root.AddCommand(
		a.newListCommand(),
		a.newAddCommand(),
		a.newUpdateCommand(),
		a.newDeleteCommand(),
		a.newWakeCommand(),
		a.newInterfacesCommand(),
		a.newListenCommand(),
		a.newServeCommand(),
	)

	return root
}

// openStore builds the persistence backend selected by the configuration
func (a *app) openStore() (registry.Store, error) {
	switch a.cfg.StoreBackend {
	case config.BackendConfigMap:
		restConfig, err := ctrl.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
		c, err := client.New(restConfig, client.Options{Scheme: scheme})
		if err != nil {
			return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
		}
		return store.NewConfigMapStore(c, a.cfg.StoreNamespace, a.cfg.StoreName, a.cfg.StoreKey), nil
	default:
		return store.NewFileStore(a.cfg.StorePath), nil
	}
}

func (a *app) openRegistry(ctx context.Context) (*registry.Registry, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return registry.New(ctx, s, ctrl.Log.WithName("registry")), nil
}

func (a *app) newWaker() *wol.Waker {
	log := ctrl.Log.WithName("wol")
	return wol.NewWaker(wol.NewUDPTransport(log.WithName("transport")), log)
}
