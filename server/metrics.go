/*
 * Copyright 2020 Kopano and its licensors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSSOChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kssobridge",
		Subsystem: "sso",
		Name:      "checks_total",
		Help:      "Total number of single sign-on checks by outcome.",
	}, []string{"outcome"})

	metricLogons = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kssobridge",
		Subsystem: "sso",
		Name:      "logons_total",
		Help:      "Total number of logon attempts by outcome.",
	}, []string{"outcome"})

	metricLogouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kssobridge",
		Subsystem: "sso",
		Name:      "logouts_total",
		Help:      "Total number of logout requests by entry point.",
	}, []string{"entry_point"})
)
