// Copyright 2025 Kadir Pekel
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

package model

import "errors"

// The two failure kinds surfaced by this package. Providers wrap transport
// and API errors with ErrCallFailed; GenerateStructured wraps decode and
// validation failures with ErrSchemaViolation.
var (
	ErrCallFailed      = errors.New("llm call failed")
	ErrSchemaViolation = errors.New("llm response violates schema")
)

// IsCallFailed reports whether err is a provider/transport failure.
func IsCallFailed(err error) bool {
	return errors.Is(err, ErrCallFailed)
}

// IsSchemaViolation reports whether err is a structured-output decode failure.
func IsSchemaViolation(err error) bool {
	return errors.Is(err, ErrSchemaViolation)
}
