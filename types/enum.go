/*
 * Copyright 2025 tomoncle.
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
 */

package types

import (
	"fmt"
	"strings"
)

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// Direction is the sort direction of an Order.
type Direction int

const (
	ASC Direction = iota
	DESC
)

var _ BaseEnum = ASC

func (d Direction) IsValid() bool { return d == ASC || d == DESC }

func (d Direction) Number() int {
	if !d.IsValid() {
		return IllegalValue
	}
	return int(d)
}

func (d Direction) Name() string {
	switch d {
	case ASC:
		return "ASC"
	case DESC:
		return "DESC"
	default:
		return IllegalName
	}
}

func (d Direction) String() string { return d.Name() }

func (d Direction) Desc() string {
	switch d {
	case ASC:
		return "ascending"
	case DESC:
		return "descending"
	default:
		return IllegalDesc
	}
}

// ParseDirection accepts "asc"/"desc" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASC", "":
		return ASC, nil
	case "DESC":
		return DESC, nil
	default:
		return ASC, fmt.Errorf("invalid sort direction: %q", s)
	}
}

// LockMode selects the row lock a query acquires.
type LockMode int

const (
	LockNone LockMode = iota
	// LockPessimisticRead takes a shared row lock (SELECT ... FOR SHARE).
	LockPessimisticRead
	// LockPessimisticWrite takes an exclusive row lock (SELECT ... FOR UPDATE).
	LockPessimisticWrite
)

var _ BaseEnum = LockNone

func (m LockMode) IsValid() bool { return m >= LockNone && m <= LockPessimisticWrite }

func (m LockMode) Number() int {
	if !m.IsValid() {
		return IllegalValue
	}
	return int(m)
}

func (m LockMode) Name() string {
	switch m {
	case LockNone:
		return "NONE"
	case LockPessimisticRead:
		return "PESSIMISTIC_READ"
	case LockPessimisticWrite:
		return "PESSIMISTIC_WRITE"
	default:
		return IllegalName
	}
}

func (m LockMode) String() string { return m.Name() }

func (m LockMode) Desc() string {
	switch m {
	case LockNone:
		return "no lock"
	case LockPessimisticRead:
		return "shared row lock"
	case LockPessimisticWrite:
		return "exclusive row lock"
	default:
		return IllegalDesc
	}
}

// Clause returns the argument for bun's SelectQuery.For, or "" for LockNone.
func (m LockMode) Clause() string {
	switch m {
	case LockPessimisticRead:
		return "SHARE"
	case LockPessimisticWrite:
		return "UPDATE"
	default:
		return ""
	}
}
