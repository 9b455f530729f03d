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
	"errors"
	"fmt"
)

// ErrInvalidMAC is returned for MAC addresses that do not match the accepted grammar
var ErrInvalidMAC = errors.New("invalid MAC address")

// SocketError reports a failure to acquire or configure the UDP socket.
// It points at a local resource or permission problem and is not retried.
type SocketError struct {
	Op  string
	Err error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("socket %s: %v", e.Op, e.Err)
}

func (e *SocketError) Unwrap() error { return e.Err }

// SendError reports a failure to hand the datagram to the network.
// Callers may retry it.
type SendError struct {
	Destination string
	Err         error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Destination, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// IsRetryable returns true if err is a transient send failure
func IsRetryable(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr)
}

// errorKind maps an error to the label used by ErrorsTotal
func errorKind(err error) string {
	var sockErr *SocketError
	var sendErr *SendError
	switch {
	case errors.Is(err, ErrInvalidMAC):
		return "invalid_mac"
	case errors.As(err, &sockErr):
		return "socket"
	case errors.As(err, &sendErr):
		return "send"
	default:
		return "other"
	}
}
