// Copyright 2025 Tom Barlow
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

package errors

import (
	"fmt"
	"time"
)

// AdmissionTimeoutError indicates a request waited for a free orchestration
// slot longer than its configured timeout allowed.
type AdmissionTimeoutError struct {
	Waited time.Duration
}

func (e *AdmissionTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting %v for an available orchestration slot", e.Waited)
}

// ReasonerError wraps a failure from the pluggable reasoning provider.
type ReasonerError struct {
	Step  int
	Cause error
}

func (e *ReasonerError) Error() string {
	return fmt.Sprintf("reasoner call failed at step %d: %v", e.Step, e.Cause)
}

func (e *ReasonerError) Unwrap() error {
	return e.Cause
}
