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
	"fmt"
	"io"
	"net"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/gpillon/wakeonlan/internal/config"
	"github.com/gpillon/wakeonlan/internal/registry"
	"github.com/gpillon/wakeonlan/internal/server"
	"github.com/gpillon/wakeonlan/internal/wol"
)

func (a *app) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			return printTargets(cmd.OutOrStdout(), reg.List())
		},
	}
}

func (a *app) newAddCommand() *cobra.Command {
	var name, ip, subnet, mac string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			target := registry.NewTarget(name, ip, subnet, mac)
			if err := reg.Add(cmd.Context(), target); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), target.ID.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&ip, "ip", "", "IPv4 address of the device")
	cmd.Flags().StringVar(&subnet, "subnet", "255.255.255.0", "Subnet mask of the device's network")
	cmd.Flags().StringVar(&mac, "mac", "", "MAC address (AA:BB:CC:DD:EE:FF, AA-BB-..., or AABBCCDDEEFF)")
	utilruntime.Must(cmd.MarkFlagRequired("name"))
	utilruntime.Must(cmd.MarkFlagRequired("ip"))
	utilruntime.Must(cmd.MarkFlagRequired("mac"))
	return cmd
}

func (a *app) newUpdateCommand() *cobra.Command {
	var name, ip, subnet, mac string

	cmd := &cobra.Command{
		Use:   "update <id|name>",
		Short: "Edit a registered target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			current, ok := reg.Find(args[0])
			if !ok {
				return fmt.Errorf("target %q not found", args[0])
			}

			edited := registry.NewTarget(
				pick(cmd, "name", name, current.Name),
				pick(cmd, "ip", ip, current.IPAddress),
				pick(cmd, "subnet", subnet, current.SubnetMask),
				pick(cmd, "mac", mac, current.MACAddress),
			)
			edited.ID = current.ID

			updated, err := reg.Update(cmd.Context(), edited)
			if err != nil {
				return err
			}
			if !updated {
				return fmt.Errorf("target %q disappeared while editing", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&ip, "ip", "", "New IPv4 address")
	cmd.Flags().StringVar(&subnet, "subnet", "", "New subnet mask")
	cmd.Flags().StringVar(&mac, "mac", "", "New MAC address")
	return cmd
}

func (a *app) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id|name>",
		Aliases: []string{"rm"},
		Short:   "Remove a registered target",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			target, ok := reg.Find(args[0])
			if !ok {
				return fmt.Errorf("target %q not found", args[0])
			}
			reg.Delete(cmd.Context(), target.ID)
			return nil
		},
	}
}

func (a *app) newWakeCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "wake [id|name]...",
		Short: "Send a magic packet to one or more targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.openRegistry(cmd.Context())
			if err != nil {
				return err
			}

			var targets []registry.Target
			if all {
				targets = reg.List()
			} else {
				if len(args) == 0 {
					return fmt.Errorf("name at least one target or use --all")
				}
				for _, ref := range args {
					t, ok := reg.Find(ref)
					if !ok {
						return fmt.Errorf("target %q not found", ref)
					}
					targets = append(targets, t)
				}
			}

			return wakeAll(cmd.Context(), a.newWaker(), targets, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Wake every registered target")
	return cmd
}

func (a *app) newInterfacesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces",
		Short: "Show local IPv4 interfaces and their broadcast addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := wol.LocalInterfaces(ctrl.Log.WithName("interfaces"))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INTERFACE\tMAC\tIP\tSUBNET\tBROADCAST")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", info.Name, info.MAC, info.IPAddress, info.SubnetMask, info.Broadcast)
			}
			return w.Flush()
		},
	}
}

func (a *app) newListenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print magic packets received on a UDP address (for checking a segment)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.openRegistry(cmd.Context())
			if err != nil {
				return err
			}

			dedupe := wol.NewDeduplicator(a.cfg.DedupeWindow, ctrl.Log.WithName("dedupe"))
			go dedupe.StartCleanup(cmd.Context())

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			listener := wol.NewListener(a.cfg.ListenAddress, func(mac string, from *net.UDPAddr) {
				if dup, _ := dedupe.Observe(mac); dup {
					return
				}
				name := "-"
				if t, ok := reg.LookupMAC(mac); ok {
					name = t.Name
				}
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "%s\t%s\t%s\n", mac, name, from.String())
			}, ctrl.Log.WithName("listener"))
			return listener.Start(cmd.Context())
		},
	}

	cmd.Flags().String("address", fmt.Sprintf(":%d", wol.DefaultWOLPort), "UDP address to listen on")
	cmd.Flags().Duration("dedupe-window", wol.DefaultDedupeWindow, "Fold repeated packets for one MAC within this window (0 disables)")
	utilruntime.Must(a.v.BindPFlag(config.ListenAddress, cmd.Flags().Lookup("address")))
	utilruntime.Must(a.v.BindPFlag(config.ListenDedupe, cmd.Flags().Lookup("dedupe-window")))
	return cmd
}

func (a *app) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and the wake API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			reg.Subscribe(func(targets []registry.Target) {
				setupLog.V(1).Info("Target list changed", "count", len(targets))
			})

			srv := server.New(reg, a.newWaker(), ctrl.Log.WithName("server"))
			return srv.Start(cmd.Context(), a.cfg.BindAddress)
		},
	}

	cmd.Flags().String("bind-address", ":8080", "The address the HTTP server binds to")
	utilruntime.Must(a.v.BindPFlag(config.ServeBindAddress, cmd.Flags().Lookup("bind-address")))
	return cmd
}

// pick returns the flag value when the flag was set on the command line
func pick(cmd *cobra.Command, flag, value, fallback string) string {
	if cmd.Flags().Changed(flag) {
		return value
	}
	return fallback
}

func printTargets(out io.Writer, targets []registry.Target) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tIP\tSUBNET\tMAC\tBROADCAST")
	for _, t := range targets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.IPAddress, t.SubnetMask, t.MACAddress, t.Broadcast())
	}
	return w.Flush()
}
