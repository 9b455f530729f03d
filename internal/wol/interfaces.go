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
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/go-logr/logr"
)

// InterfaceInfo describes a local IPv4 address a target could be reached through
type InterfaceInfo struct {
	Name       string
	MAC        string
	IPAddress  string
	SubnetMask string
	Broadcast  string
}

// LocalInterfaces lists broadcast-capable IPv4 addresses on interfaces that are up,
// with the broadcast address ComputeBroadcast derives for each of them.
func LocalInterfaces(log logr.Logger) ([]InterfaceInfo, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	return collectInterfaces(interfaces, func(iface net.Interface) ([]net.Addr, error) {
		return iface.Addrs()
	}, log)
}

func collectInterfaces(interfaces []net.Interface, addrsOf func(net.Interface) ([]net.Addr, error), log logr.Logger) ([]InterfaceInfo, error) {
	var result []InterfaceInfo

	for _, iface := range interfaces {
		// Skip loopback or down
		if (iface.Flags&net.FlagLoopback) != 0 || (iface.Flags&net.FlagUp) == 0 {
			continue
		}
		if (iface.Flags & net.FlagBroadcast) == 0 {
			continue
		}

		// Skip virtual interfaces that never reach a physical segment
		if strings.HasPrefix(iface.Name, "veth") ||
			strings.HasPrefix(iface.Name, "tap") ||
			strings.HasPrefix(iface.Name, "docker") {
			log.V(1).Info("Skipping virtual interface", "interface", iface.Name)
			continue
		}

		addrs, err := addrsOf(iface)
		if err != nil {
			log.Error(err, "Failed to read interface addresses", "interface", iface.Name)
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || len(ipNet.Mask) != net.IPv4len {
				continue
			}
			mask := net.IP(ipNet.Mask).String()
			result = append(result, InterfaceInfo{
				Name:       iface.Name,
				MAC:        iface.HardwareAddr.String(),
				IPAddress:  ip4.String(),
				SubnetMask: mask,
				Broadcast:  ComputeBroadcast(ip4.String(), mask),
			})
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no suitable interfaces found")
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].IPAddress < result[j].IPAddress
	})

	return result, nil
}
