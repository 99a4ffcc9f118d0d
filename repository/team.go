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

package repository

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tomoncle/datajpa/entity"
	"github.com/uptrace/bun"
)

var teamType = reflect.TypeOf((*entity.Team)(nil))

type TeamRepository struct {
	*BaseRepository[entity.Team]
}

func NewTeamRepository(db *bun.DB) (*TeamRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("team repository: %w", errNoDB)
	}
	return NewTeamRepositoryFrom(fixedDB{db})
}

// NewTeamRepositoryFrom resolves the DB through src on every call.
func NewTeamRepositoryFrom(src DBSource) (*TeamRepository, error) {
	base, err := NewRepositoryFrom[entity.Team](src, "findByName")
	if err != nil {
		return nil, fmt.Errorf("team repository: %w", err)
	}
	return &TeamRepository{BaseRepository: base}, nil
}

func (r *TeamRepository) FindByName(ctx context.Context, name string) ([]*entity.Team, error) {
	return r.FindBy(ctx, "findByName", []any{name})
}

// FindWithMembers loads the team and, in a second query, its members.
func (r *TeamRepository) FindWithMembers(ctx context.Context, id int64) (*entity.Team, error) {
	return r.FindByID(ctx, id, FetchJoin("Members"))
}
