// Copyright 2025 VexFS Contributors
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

// Package clock provides an injectable source of time so that inode
// timestamps, transaction clocks, and watchdog heartbeats can be driven
// deterministically in tests instead of depending on the wall clock.
package clock

import "time"

// Clock is the time source every timestamped core component depends on:
// inode a/m/c-times, journal transaction start/prepare/commit timestamps,
// coordinator backoff delays, and the panic-handler watchdog's heartbeat
// interval all take one of these instead of calling time.Now/time.After
// directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

var (
	_ Clock = RealClock{}
	_ Clock = &FakeClock{}
	_ Clock = &SimulatedClock{}
)
