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

package crashreporter

import (
	syslog "log"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/sentry-go"
)

const (
	envSentryDSN = "COURIER_SENTRY_DSN"

	depthForRecoverAndReportPanic = 3

	flushTimeout = time.Second * 10
)

var crashReporterEnabled bool

func init() {
	sentryDSN := os.Getenv(envSentryDSN)
	if len(sentryDSN) == 0 {
		return
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: sentryDSN}); err != nil {
		syslog.Printf("sentry.Init: %s", err)
		return
	}
	crashReporterEnabled = true
}

// RecoverAndReportPanic must be deferred at the top of a goroutine.
// A recovered panic is reported tagged with component and then raised again.
func RecoverAndReportPanic(component string) {
	if r := recover(); r != nil {
		panicErr := panicAsError(depthForRecoverAndReportPanic+1, r)
		if crashReporterEnabled {
			sendCrashReport(panicErr, component)
		}
		panic(panicErr)
	}
}

func panicAsError(depth int, r interface{}) error {
	if err, ok := r.(error); ok {
		return errors.WithStackDepth(err, depth+1)
	}
	return errors.NewWithDepthf(depth+1, "panic: %v", r)
}

var captureFn = captureAndFlush

func sendCrashReport(err error, component string) {
	captureFn(buildCrashReport(err, component))
}

func buildCrashReport(err error, component string) *sentry.Event {
	event, extraDetails := errors.BuildSentryReport(err)

	for extraKey, extraValue := range extraDetails {
		event.Extra[extraKey] = extraValue
	}
	event.ServerName = "<redacted>"
	event.Tags["report_type"] = "panic"
	event.Tags["component"] = component
	return event
}

func captureAndFlush(event *sentry.Event) {
	_ = sentry.CaptureEvent(event)
	_ = sentry.Flush(flushTimeout)
}
