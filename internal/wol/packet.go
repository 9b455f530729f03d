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

const (
	// DefaultWOLPort is the standard Wake-on-LAN UDP port
	DefaultWOLPort = 9
	// MagicPacketSize is the size of a WOL magic packet (6 + 6*16 = 102 bytes)
	MagicPacketSize = 6 + 16*6 // 6x0xFF + 16 repetitions of MAC

	macRepeat = 16
)

// MagicPacket is the fixed 102-byte wake payload
type MagicPacket [MagicPacketSize]byte

// BuildMagicPacket creates the magic packet for mac:
// - 6 bytes of 0xFF
// - 16 repetitions of the target MAC address (6 bytes each)
func BuildMagicPacket(mac HardwareAddr) MagicPacket {
	var packet MagicPacket

	for i := 0; i < 6; i++ {
		packet[i] = 0xFF
	}
	for i := 0; i < macRepeat; i++ {
		copy(packet[6+i*6:6+(i+1)*6], mac[:])
	}

	return packet
}

// ParseMagicPacket validates and extracts the MAC address from a WOL magic packet.
// Trailing bytes beyond the first 102 are ignored.
func ParseMagicPacket(packet []byte) (string, bool) {
	if len(packet) < MagicPacketSize {
		return "", false
	}

	for i := 0; i < 6; i++ {
		if packet[i] != 0xFF {
			return "", false
		}
	}

	var mac HardwareAddr
	copy(mac[:], packet[6:12])

	for i := 1; i < macRepeat; i++ {
		offset := 6 + (i * 6)
		for j := 0; j < 6; j++ {
			if packet[offset+j] != mac[j] {
				return "", false
			}
		}
	}

	return mac.String(), true
}
