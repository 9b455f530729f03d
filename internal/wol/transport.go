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
	"context"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"
)

// Sender sends a single datagram to a broadcast destination
type Sender interface {
	SendBroadcast(ctx context.Context, payload []byte, destination string, port int) error
}

// UDPTransport sends datagrams from a fresh broadcast-enabled UDP socket per call
type UDPTransport struct {
	log logr.Logger
}

// NewUDPTransport creates a new UDP broadcast transport
func NewUDPTransport(log logr.Logger) *UDPTransport {
	return &UDPTransport{log: log}
}

// SendBroadcast opens a UDP socket with SO_BROADCAST, writes payload to
// destination:port and closes the socket again, whatever the outcome.
func (t *UDPTransport) SendBroadcast(ctx context.Context, payload []byte, destination string, port int) error {
	hostPort := net.JoinHostPort(destination, strconv.Itoa(port))

	dst, err := net.ResolveUDPAddr("udp4", hostPort)
	if err != nil {
		return &SendError{Destination: hostPort, Err: err}
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var optErr error
			if err := c.Control(func(fd uintptr) {
				optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			}); err != nil {
				return err
			}
			if optErr != nil {
				return fmt.Errorf("SO_BROADCAST: %w", optErr)
			}
			return nil
		},
	}

	conn, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return &SocketError{Op: "open", Err: err}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			t.log.Error(err, "Failed to close UDP socket")
		}
	}()

	n, err := conn.WriteTo(payload, dst)
	if err != nil {
		return &SendError{Destination: hostPort, Err: err}
	}
	if n != len(payload) {
		return &SendError{
			Destination: hostPort,
			Err:         fmt.Errorf("short write: sent %d of %d bytes", n, len(payload)),
		}
	}

	t.log.V(1).Info("Datagram sent", "destination", hostPort, "size", n)
	return nil
}
