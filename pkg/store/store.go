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

// Package store persists tutoring sessions. Two implementations are
// provided: an in-memory store for single-process deployments and a SQL
// store supporting sqlite, postgres, and mysql.
package store

import (
	"context"
	"errors"

	"github.com/kadirpekel/stepwise/pkg/tutor"
)

// ErrNotFound is returned when a session ID does not exist.
var ErrNotFound = errors.New("session not found")

// Service persists sessions keyed by ID. Save overwrites any previous state
// for the same ID.
type Service interface {
	Save(ctx context.Context, session *tutor.Session) error
	Get(ctx context.Context, id string) (*tutor.Session, error)
	List(ctx context.Context) ([]*tutor.Session, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
