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

package entity

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// BaseTimeEntity carries the creation and modification timestamps. Both are
// written only by the BeforeAppendModel hook.
type BaseTimeEntity struct {
	CreatedDate time.Time `bun:"created_date,nullzero,notnull" json:"createdDate"`
	UpdatedDate time.Time `bun:"updated_date,nullzero,notnull" json:"updatedDate"`
}

var _ bun.BeforeAppendModelHook = (*BaseTimeEntity)(nil)

func (e *BaseTimeEntity) BeforeAppendModel(_ context.Context, query bun.Query) error {
	now := time.Now()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.CreatedDate.IsZero() {
			e.CreatedDate = now
		}
		e.UpdatedDate = now
	case *bun.UpdateQuery:
		e.UpdatedDate = now
	}
	return nil
}

// ImmutableColumns lists the columns repositories never include in an UPDATE.
func (e *BaseTimeEntity) ImmutableColumns() []string {
	return []string{"created_date"}
}

// BaseEntity adds who created and last modified the row, taken from the auditor.
type BaseEntity struct {
	BaseTimeEntity
	CreatedBy      string `bun:"created_by" json:"createdBy"`
	LastModifiedBy string `bun:"last_modified_by" json:"lastModifiedBy"`
}

var _ bun.BeforeAppendModelHook = (*BaseEntity)(nil)

func (e *BaseEntity) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if err := e.BaseTimeEntity.BeforeAppendModel(ctx, query); err != nil {
		return err
	}
	switch query.(type) {
	case *bun.InsertQuery:
		auditor := CurrentAuditor(ctx)
		if e.CreatedBy == "" {
			e.CreatedBy = auditor
		}
		e.LastModifiedBy = auditor
	case *bun.UpdateQuery:
		e.LastModifiedBy = CurrentAuditor(ctx)
	}
	return nil
}

func (e *BaseEntity) ImmutableColumns() []string {
	return append(e.BaseTimeEntity.ImmutableColumns(), "created_by")
}
