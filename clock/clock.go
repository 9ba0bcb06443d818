// Copyright 2025 Google LLC
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

package clock

import "time"

// Clock is the time source RealClock/FakeClock/SimulatedClock implement.
// Components that need to control time in tests (ResourceMonitor's
// propagation cadence, PurgeDriver's age-based cutoffs) take a Clock
// instead of calling time.Now directly.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

var _ Clock = RealClock{}
var _ Clock = (*FakeClock)(nil)
var _ Clock = (*SimulatedClock)(nil)
