// Copyright 2022 The jackal Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	clientConnectionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "client",
			Name:      "connection_attempts_total",
			Help:      "The total number of connection attempts.",
		},
		[]string{"transport"},
	)
	clientConnectionsEstablished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "client",
			Name:      "connections_established_total",
			Help:      "The total number of sessions that reached the established state.",
		},
	)
	clientAuthentications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "client",
			Name:      "authentications_total",
			Help:      "The total number of authentication attempts.",
		},
		[]string{"mechanism", "outcome"},
	)
	clientReconnectsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "client",
			Name:      "reconnects_scheduled_total",
			Help:      "The total number of scheduled reconnections.",
		},
	)
	clientOutgoingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "client",
			Name:      "outgoing_requests_total",
			Help:      "The total number of outgoing stanza requests.",
		},
		[]string{"name", "type"},
	)
	clientIncomingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "client",
			Name:      "incoming_requests_total",
			Help:      "The total number of incoming stanza requests.",
		},
		[]string{"name", "type"},
	)
	clientIncomingRequestDurationBucket = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "courier",
			Subsystem: "client",
			Name:      "incoming_requests_duration_bucket",
			Help:      "Bucketed histogram of incoming stanza requests duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
		},
		[]string{"name", "type"},
	)
	clientState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "courier",
			Subsystem: "client",
			Name:      "state",
			Help:      "Current session lifecycle state.",
		},
	)
)

func init() {
	prometheus.MustRegister(clientConnectionAttempts)
	prometheus.MustRegister(clientConnectionsEstablished)
	prometheus.MustRegister(clientAuthentications)
	prometheus.MustRegister(clientReconnectsScheduled)
	prometheus.MustRegister(clientOutgoingRequests)
	prometheus.MustRegister(clientIncomingRequests)
	prometheus.MustRegister(clientIncomingRequestDurationBucket)
	prometheus.MustRegister(clientState)
}

func reportConnectionAttempt(transportType string) {
	clientConnectionAttempts.With(prometheus.Labels{"transport": transportType}).Inc()
}

func reportConnectionEstablished() {
	clientConnectionsEstablished.Inc()
}

func reportAuthentication(mechanism, outcome string) {
	metricLabel := prometheus.Labels{
		"mechanism": mechanism,
		"outcome":   outcome,
	}
	clientAuthentications.With(metricLabel).Inc()
}

func reportReconnectScheduled() {
	clientReconnectsScheduled.Inc()
}

func reportOutgoingRequest(name, typ string) {
	metricLabel := prometheus.Labels{
		"name": name,
		"type": typ,
	}
	clientOutgoingRequests.With(metricLabel).Inc()
}

func reportIncomingRequest(name, typ string, durationInSecs float64) {
	metricLabel := prometheus.Labels{
		"name": name,
		"type": typ,
	}
	clientIncomingRequests.With(metricLabel).Inc()
	clientIncomingRequestDurationBucket.With(metricLabel).Observe(durationInSecs)
}

func reportState(st State) {
	clientState.Set(float64(st))
}
