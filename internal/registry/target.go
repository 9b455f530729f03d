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
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gpillon/wakeonlan/internal/wol"
)

var (
	// ErrEmptyName is returned for targets without a display name
	ErrEmptyName = errors.New("name must not be empty")
	// ErrInvalidIP is returned for IP addresses or subnet masks that are not dotted quads
	ErrInvalidIP = errors.New("invalid IPv4 address")
	// ErrDuplicateID is returned when a target with the same ID is already registered
	ErrDuplicateID = errors.New("id already registered")
)

// ValidationError reports which field of a Target failed validation
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Target is a device that can be woken up
type Target struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	IPAddress  string    `json:"ipAddress"`
	SubnetMask string    `json:"subnetMask"`
	MACAddress string    `json:"macAddress"`
}

// NewTarget creates a target with a fresh ID. Surrounding whitespace is
// trimmed from every field.
func NewTarget(name, ipAddress, subnetMask, macAddress string) Target {
	return Target{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(name),
		IPAddress:  strings.TrimSpace(ipAddress),
		SubnetMask: strings.TrimSpace(subnetMask),
		MACAddress: strings.TrimSpace(macAddress),
	}
}

// Validate checks every field against its grammar
func (t Target) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if !wol.ValidateIP(t.IPAddress) {
		return &ValidationError{Field: "ipAddress", Err: fmt.Errorf("%w: %q", ErrInvalidIP, t.IPAddress)}
	}
	if !wol.ValidateIP(t.SubnetMask) {
		return &ValidationError{Field: "subnetMask", Err: fmt.Errorf("%w: %q", ErrInvalidIP, t.SubnetMask)}
	}
	if _, err := wol.ParseMAC(t.MACAddress); err != nil {
		return &ValidationError{Field: "macAddress", Err: err}
	}
	return nil
}

// Broadcast returns the broadcast address derived from the current IP and subnet mask
func (t Target) Broadcast() string {
	return wol.ComputeBroadcast(t.IPAddress, t.SubnetMask)
}

// WakeRequest captures the fields the wake service needs
func (t Target) WakeRequest() wol.Request {
	return wol.Request{
		Name:       t.Name,
		IPAddress:  t.IPAddress,
		SubnetMask: t.SubnetMask,
		MACAddress: t.MACAddress,
	}
}
