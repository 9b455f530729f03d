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
	"sync"
	"syscall"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"
)

// PacketHandler is called for every valid magic packet a Listener receives
type PacketHandler func(mac string, from *net.UDPAddr)

// Listener receives Wake-on-LAN packets on a UDP address. It is used to check
// that packets sent by this tool actually reach a segment.
type Listener struct {
	address string
	handler PacketHandler
	log     logr.Logger

	mu   sync.Mutex
	conn *net.UDPConn
	wg   sync.WaitGroup
}

// NewListener creates a new WOL listener on address (host:port)
func NewListener(address string, handler PacketHandler, log logr.Logger) *Listener {
	if address == "" {
		address = fmt.Sprintf(":%d", DefaultWOLPort)
	}
	return &Listener{
		address: address,
		handler: handler,
		log:     log,
	}
}

// Bind opens the socket and starts the receive loop in the background
func (l *Listener) Bind(ctx context.Context) error {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				// Allow several listeners on the same port
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					l.log.Error(err, "Failed to enable SO_REUSEADDR")
				}
				// Enable SO_BROADCAST to handle broadcast packets
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
					l.log.Error(err, "Failed to enable SO_BROADCAST")
				}
			})
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp4", l.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.address, err)
	}
	conn := pc.(*net.UDPConn)

	if err := conn.SetReadBuffer(1024 * 64); err != nil {
		l.log.Error(err, "Failed to set read buffer size")
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	l.log.Info("WOL listener started", "address", conn.LocalAddr().String())

	l.wg.Add(1)
	go l.listen(ctx, conn)
	return nil
}

// Start binds and blocks until ctx is cancelled
func (l *Listener) Start(ctx context.Context) error {
	if err := l.Bind(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	l.Stop()
	return nil
}

// Addr returns the bound local address, or nil before Bind
func (l *Listener) Addr() *net.UDPAddr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// listen is the main receive loop
func (l *Listener) listen(ctx context.Context, conn *net.UDPConn) {
	defer l.wg.Done()
	buffer := make([]byte, 1024)

	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || l.closed() {
				return
			}
			l.log.Error(err, "Error reading UDP packet")
			continue
		}

		mac, valid := ParseMagicPacket(buffer[:n])
		if !valid {
			l.log.V(1).Info("Ignoring non-WOL packet", "from", addr.String(), "size", n)
			continue
		}

		PacketsReceivedTotal.Inc()
		l.log.Info("Valid WOL packet received", "mac", mac, "from", addr.String())

		if l.handler != nil {
			l.handler(mac, addr)
		}
	}
}

func (l *Listener) closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn == nil
}

// Stop closes the socket and waits for the receive loop to exit
func (l *Listener) Stop() {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		l.log.Error(err, "Failed to close UDP listener")
	}
	l.wg.Wait()
	l.log.Info("WOL listener stopped")
}
