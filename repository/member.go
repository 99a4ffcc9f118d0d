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
	"errors"
	"fmt"

	"github.com/tomoncle/datajpa/dto"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
)

var _ Repository[entity.Member] = (*BaseRepository[entity.Member])(nil)

var memberQueries = []string{
	"findByUsernameAndAgeGreaterThan",
	"findByUsername",
	"findListByUsername",
	"findMemberByUsername",
	"findOptionalByUsername",
	"findByAge",
	"findSliceByAge",
	"findListByAge",
	"findReadOnlyByUsername",
	"findLockByUsername",
	"findEntityGraphByUsername",
	"findByTeamName",
	"countByAge",
	"existsByUsername",
	"deleteByUsername",
}

// MemberRepository is the member data access layer. FindMemberCustom comes
// from the MemberRepositoryCustom fragment.
type MemberRepository struct {
	*BaseRepository[entity.Member]
	MemberRepositoryCustom
}

func NewMemberRepository(db *bun.DB) (*MemberRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("member repository: %w", errNoDB)
	}
	return NewMemberRepositoryFrom(fixedDB{db})
}

// NewMemberRepositoryFrom resolves the DB through src on every call.
func NewMemberRepositoryFrom(src DBSource) (*MemberRepository, error) {
	base, err := NewRepositoryFrom[entity.Member](src, memberQueries...)
	if err != nil {
		return nil, fmt.Errorf("member repository: %w", err)
	}
	return &MemberRepository{
		BaseRepository:         base,
		MemberRepositoryCustom: &memberRepositoryImpl{db: base.db},
	}, nil
}

func (r *MemberRepository) FindByUsernameAndAgeGreaterThan(ctx context.Context, username string, age int) ([]*entity.Member, error) {
	return r.FindBy(ctx, "findByUsernameAndAgeGreaterThan", []any{username, age})
}

func (r *MemberRepository) FindByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindBy(ctx, "findByUsername", []any{username})
}

// FindListByUsername returns an empty slice, never nil, when nothing matches.
func (r *MemberRepository) FindListByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindBy(ctx, "findListByUsername", []any{username})
}

// FindMemberByUsername returns nil and no error when nothing matches.
func (r *MemberRepository) FindMemberByUsername(ctx context.Context, username string) (*entity.Member, error) {
	m, err := r.FindOneBy(ctx, "findMemberByUsername", []any{username})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return m, err
}

func (r *MemberRepository) FindOptionalByUsername(ctx context.Context, username string) (*entity.Member, bool, error) {
	m, err := r.FindOneBy(ctx, "findOptionalByUsername", []any{username})
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (r *MemberRepository) FindByAge(ctx context.Context, age int, page *types.PageRequest) (*types.Page[entity.Member], error) {
	return r.FindPageBy(ctx, "findByAge", []any{age}, page)
}

func (r *MemberRepository) FindSliceByAge(ctx context.Context, age int, page *types.PageRequest) (*types.Slice[entity.Member], error) {
	return r.FindSliceBy(ctx, "findSliceByAge", []any{age}, page)
}

// FindListByAge reads the page window only; no count query runs.
func (r *MemberRepository) FindListByAge(ctx context.Context, age int, page *types.PageRequest) ([]*entity.Member, error) {
	return r.findWindowBy(ctx, "findListByAge", []any{age}, page)
}

// FindReadOnlyByUsername loads outside the session, so changes to the
// result are never flushed.
func (r *MemberRepository) FindReadOnlyByUsername(ctx context.Context, username string) (*entity.Member, error) {
	m, err := r.FindOneBy(ctx, "findReadOnlyByUsername", []any{username}, ReadOnly())
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// FindLockByUsername takes a shared row lock on the matches. ctx must carry
// a transaction, see RunInTx.
func (r *MemberRepository) FindLockByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindBy(ctx, "findLockByUsername", []any{username}, Lock(types.LockPessimisticRead))
}

func (r *MemberRepository) FindEntityGraphByUsername(ctx context.Context, username string) ([]*entity.Member, error) {
	return r.FindBy(ctx, "findEntityGraphByUsername", []any{username}, FetchJoin("Team"))
}

func (r *MemberRepository) FindByTeamName(ctx context.Context, teamName string) ([]*entity.Member, error) {
	return r.FindBy(ctx, "findByTeamName", []any{teamName})
}

func (r *MemberRepository) CountByAge(ctx context.Context, age int) (int, error) {
	return r.CountBy(ctx, "countByAge", age)
}

func (r *MemberRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.ExistsBy(ctx, "existsByUsername", username)
}

func (r *MemberRepository) DeleteByUsername(ctx context.Context, username string) (int, error) {
	return r.DeleteBy(ctx, "deleteByUsername", username)
}

type userParams struct {
	Username string `bun:"username"`
	Age      int    `bun:"age"`
}

// FindUser binds its parameters by name.
func (r *MemberRepository) FindUser(ctx context.Context, username string, age int) ([]*entity.Member, error) {
	return r.find(ctx, collectOptions(nil), func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		return q.Where("m.username = ?username AND m.age = ?age", &userParams{Username: username, Age: age}), nil
	})
}

func (r *MemberRepository) FindUsernameList(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	err := r.Conn(ctx).NewSelect().
		Model((*entity.Member)(nil)).
		Column("username").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx, &names)
	return names, err
}

// FindMemberDto projects members joined with their team; members without a
// team are left out.
func (r *MemberRepository) FindMemberDto(ctx context.Context) ([]dto.MemberDto, error) {
	dtos := make([]dto.MemberDto, 0)
	err := r.Conn(ctx).NewSelect().
		Model((*entity.Member)(nil)).
		ColumnExpr("?TableAlias.id, ?TableAlias.username").
		ColumnExpr("t.name AS team_name").
		Join("JOIN team AS t ON t.id = ?TableAlias.team_id").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx, &dtos)
	return dtos, err
}

func (r *MemberRepository) FindByNames(ctx context.Context, names []string) ([]*entity.Member, error) {
	return r.find(ctx, collectOptions(nil), func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		return q.Where("?TableAlias.username IN (?)", bun.In(names)), nil
	})
}

// FindSeparateCountByAge joins team for the content and counts members
// without the join.
func (r *MemberRepository) FindSeparateCountByAge(ctx context.Context, age int, page *types.PageRequest) (*types.Page[entity.Member], error) {
	content := func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Join("LEFT JOIN team AS t ON t.id = ?TableAlias.team_id").
			Where("?TableAlias.age = ?", age)
	}
	return r.pageOf(ctx, page, collectOptions(nil), infallible(content), func(ctx context.Context) (int, error) {
		return r.Conn(ctx).NewSelect().
			Model((*entity.Member)(nil)).
			Where("?TableAlias.age = ?", age).
			Count(ctx)
	})
}

// BulkAgePlus adds one to the age of every member at least age years old in
// a single UPDATE. Auditing hooks do not run and the session bound to ctx is
// cleared, since its entities no longer match the rows.
func (r *MemberRepository) BulkAgePlus(ctx context.Context, age int) (int, error) {
	res, err := r.Conn(ctx).NewUpdate().
		Model((*entity.Member)(nil)).
		Set("age = age + 1").
		Where("age >= ?", age).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	if s := SessionFrom(ctx); s != nil {
		s.Clear()
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// FindMemberFetchJoin loads members and their teams in one query.
func (r *MemberRepository) FindMemberFetchJoin(ctx context.Context) ([]*entity.Member, error) {
	return r.find(ctx, collectOptions([]QueryOption{FetchJoin("Team")}), func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		return q.OrderExpr("?TableAlias.id ASC"), nil
	})
}

func (r *MemberRepository) FindAllWithTeam(ctx context.Context) ([]*entity.Member, error) {
	return r.FindAll(ctx, FetchJoin("Team"))
}

// LoadTeam loads the team of a member read without it. Every call is one
// query, so loading the teams of N members this way costs N more.
func (r *MemberRepository) LoadTeam(ctx context.Context, m *entity.Member) error {
	if m == nil || m.Team != nil || m.TeamID == 0 {
		return nil
	}
	s := SessionFrom(ctx)
	if s != nil {
		if team, ok := s.Lookup(teamType, m.TeamID); ok {
			m.Team = team.(*entity.Team)
			return nil
		}
	}
	team := new(entity.Team)
	err := r.Conn(ctx).NewSelect().
		Model(team).
		Where("?TableAlias.id = ?", m.TeamID).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to load team of %s: %w", m, err)
	}
	if s != nil {
		team = s.Attach(team).(*entity.Team)
	}
	m.Team = team
	return nil
}
