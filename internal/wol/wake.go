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

	"github.com/go-logr/logr"
)

// Request holds the fields of a target needed to wake it, captured once at dispatch
type Request struct {
	Name       string
	IPAddress  string
	SubnetMask string
	MACAddress string
}

// Result is the outcome of a single wake request
type Result struct {
	Request   Request
	Broadcast string
	Err       error
}

// Waker turns wake requests into magic packets and hands them to a Sender
type Waker struct {
	sender Sender
	log    logr.Logger
}

// NewWaker creates a new wake service
func NewWaker(sender Sender, log logr.Logger) *Waker {
	return &Waker{
		sender: sender,
		log:    log,
	}
}

// Wake sends the magic packet for req to its subnet broadcast address on
// DefaultWOLPort. Address handling runs on the caller's goroutine; only the
// send is dispatched. The returned channel yields exactly one Result and is
// then closed. An invalid MAC completes the request without touching the Sender.
func (w *Waker) Wake(ctx context.Context, req Request) <-chan Result {
	WakeRequestsTotal.Inc()
	done := make(chan Result, 1)

	broadcast := ComputeBroadcast(req.IPAddress, req.SubnetMask)
	if !ValidateIP(req.IPAddress) || !ValidateIP(req.SubnetMask) {
		w.log.V(1).Info("Falling back to universal broadcast",
			"target", req.Name,
			"ip", req.IPAddress,
			"subnet", req.SubnetMask)
	}

	mac, err := ParseMAC(req.MACAddress)
	if err != nil {
		ErrorsTotal.WithLabelValues(errorKind(err)).Inc()
		w.log.Info("Refusing to wake target with invalid MAC", "target", req.Name, "mac", req.MACAddress)
		done <- Result{Request: req, Broadcast: broadcast, Err: err}
		close(done)
		return done
	}

	packet := BuildMagicPacket(mac)

	go func() {
		defer close(done)

		err := w.sender.SendBroadcast(ctx, packet[:], broadcast, DefaultWOLPort)
		if err != nil {
			ErrorsTotal.WithLabelValues(errorKind(err)).Inc()
			w.log.Error(err, "Failed to send magic packet",
				"target", req.Name,
				"mac", mac.String(),
				"broadcast", broadcast,
				"retryable", IsRetryable(err))
		} else {
			PacketsSentTotal.Inc()
			w.log.Info("Magic packet sent",
				"target", req.Name,
				"mac", mac.String(),
				"broadcast", broadcast,
				"port", DefaultWOLPort)
		}

		done <- Result{Request: req, Broadcast: broadcast, Err: err}
	}()

	return done
}

// WakeSync dispatches req and waits for its outcome
func (w *Waker) WakeSync(ctx context.Context, req Request) error {
	return (<-w.Wake(ctx, req)).Err
}
