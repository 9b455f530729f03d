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
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// UniversalBroadcast is the destination used when no subnet broadcast can be derived
const UniversalBroadcast = "255.255.255.255"

// HardwareAddr is a 48-bit MAC address
type HardwareAddr [6]byte

// String formats the MAC address as lowercase with colons
func (h HardwareAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		h[0], h[1], h[2], h[3], h[4], h[5])
}

// ParseMAC parses a MAC address written as 12 hex digits, optionally grouped
// with ':' or '-' separators. Case is ignored.
func ParseMAC(s string) (HardwareAddr, error) {
	var mac HardwareAddr

	clean := strings.TrimSpace(s)
	clean = strings.ReplaceAll(clean, ":", "")
	clean = strings.ReplaceAll(clean, "-", "")

	if len(clean) != 12 {
		return mac, fmt.Errorf("%w: %q must contain 12 hex digits", ErrInvalidMAC, s)
	}

	if _, err := hex.Decode(mac[:], []byte(clean)); err != nil {
		return mac, fmt.Errorf("%w: %q: %v", ErrInvalidMAC, s, err)
	}

	return mac, nil
}

// ValidateIP reports whether s is a dotted quad of decimal octets in [0,255].
// Subnet masks share the same grammar.
func ValidateIP(s string) bool {
	_, ok := parseOctets(s)
	return ok
}

// ComputeBroadcast returns ip OR NOT(subnet) octet by octet. When either input
// is not a valid dotted quad it falls back to UniversalBroadcast so a send can
// still be attempted.
func ComputeBroadcast(ip, subnet string) string {
	ipOctets, ok := parseOctets(ip)
	if !ok {
		return UniversalBroadcast
	}
	maskOctets, ok := parseOctets(subnet)
	if !ok {
		return UniversalBroadcast
	}

	parts := make([]string, 4)
	for i := 0; i < 4; i++ {
		parts[i] = strconv.Itoa(int(ipOctets[i] | ^maskOctets[i]))
	}
	return strings.Join(parts, ".")
}

func parseOctets(s string) ([4]byte, bool) {
	var out [4]byte

	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 4 {
		return out, false
	}

	for i, part := range parts {
		if part == "" {
			return out, false
		}
		// Atoi alone would accept a leading sign
		for _, c := range part {
			if c < '0' || c > '9' {
				return out, false
			}
		}
		n, err := strconv.Atoi(part)
		if err != nil || n > 255 {
			return out, false
		}
		out[i] = byte(n)
	}

	return out, true
}
