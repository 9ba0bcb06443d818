// Copyright 2024 Google Inc. All Rights Reserved.
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

package events

import "github.com/google/uuid"

// NewCorrelationID returns a fresh id for one PurgeDriver.Run pass, so
// every log line of that pass can be tied back together (SPEC_FULL.md
// domain-stack addition). Posted purge events do not carry the id.
func NewCorrelationID() string {
	return uuid.NewString()
}
