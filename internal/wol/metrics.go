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
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// WakeRequestsTotal counts the number of wake requests dispatched
	WakeRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wol_wake_requests_total",
			Help: "Number of wake requests received",
		},
	)

	// PacketsSentTotal counts the number of magic packets handed to the network
	PacketsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wol_packets_sent_total",
			Help: "Number of Wake-on-LAN magic packets sent",
		},
	)

	// PacketsReceivedTotal counts valid magic packets seen by a Listener
	PacketsReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wol_packets_received_total",
			Help: "Number of Wake-on-LAN magic packets received by the listener",
		},
	)

	// ErrorsTotal counts wake failures by kind (invalid_mac, socket, send)
	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wol_errors_total",
			Help: "Number of errors during Wake-on-LAN handling",
		},
		[]string{"kind"},
	)
)

func init() {
	// Register metrics with controller-runtime's registry
	metrics.Registry.MustRegister(
		WakeRequestsTotal,
		PacketsSentTotal,
		PacketsReceivedTotal,
		ErrorsTotal,
	)
}
