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

	"github.com/tomoncle/datajpa/entity"
	"github.com/uptrace/bun"
)

// MemberRepositoryCustom holds member queries written by hand instead of
// derived from a method name.
type MemberRepositoryCustom interface {
	FindMemberCustom(ctx context.Context) ([]*entity.Member, error)
}

type memberRepositoryImpl struct {
	db dbHandle
}

func (r *memberRepositoryImpl) FindMemberCustom(ctx context.Context) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	err := conn(ctx, r.db.get()).NewSelect().Model(&members).Scan(ctx)
	return members, err
}

// MemberQueryRepository serves screen specific member queries and is kept
// apart from MemberRepository.
type MemberQueryRepository struct {
	db dbHandle
}

func NewMemberQueryRepository(db *bun.DB) *MemberQueryRepository {
	return &MemberQueryRepository{db: dbHandle{src: fixedDB{db}, initial: db}}
}

// NewMemberQueryRepositoryFrom resolves the DB through src on every call.
func NewMemberQueryRepositoryFrom(src DBSource) (*MemberQueryRepository, error) {
	h, err := newDBHandle(src)
	if err != nil {
		return nil, err
	}
	return &MemberQueryRepository{db: h}, nil
}

func (r *MemberQueryRepository) FindAllMembers(ctx context.Context) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	err := conn(ctx, r.db.get()).NewSelect().Model(&members).OrderExpr("?TableAlias.id ASC").Scan(ctx)
	return members, err
}
