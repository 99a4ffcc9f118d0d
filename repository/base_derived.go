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
	"database/sql"
	"fmt"

	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
)

func (r *BaseRepository[T]) derived(method string) (*DerivedQuery, error) {
	if q, ok := r.queries.Load(method); ok {
		return q.(*DerivedQuery), nil
	}
	q, err := ParseDerivedQuery(method)
	if err != nil {
		return nil, err
	}
	if err := q.resolve(r.table); err != nil {
		return nil, err
	}
	actual, _ := r.queries.LoadOrStore(method, q)
	return actual.(*DerivedQuery), nil
}

func (r *BaseRepository[T]) derivedOf(method string, subjects ...Subject) (*DerivedQuery, error) {
	q, err := r.derived(method)
	if err != nil {
		return nil, err
	}
	for _, s := range subjects {
		if q.Subject == s {
			return q, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is a %s query", ErrInvalidQuery, method, q.Subject)
}

// criteria returns a where function for q bound to args. The joins a nested
// property needs are added to o.
func (r *BaseRepository[T]) criteria(q *DerivedQuery, args []any, o *queryOptions) (func(*bun.SelectQuery) *bun.SelectQuery, error) {
	where, params, err := q.where(args)
	if err != nil {
		return nil, err
	}
	if o != nil {
		for _, rel := range q.joins {
			if !o.hasRelation(rel) {
				o.relations = append(o.relations, rel)
			}
		}
	}
	return func(sq *bun.SelectQuery) *bun.SelectQuery {
		if where != "" {
			sq = sq.Where(where, params...)
		}
		if q.Distinct {
			sq = sq.Distinct()
		}
		return sq
	}, nil
}

func (r *BaseRepository[T]) countQuery(ctx context.Context, q *DerivedQuery, where func(*bun.SelectQuery) *bun.SelectQuery) (int, error) {
	sq := r.Conn(ctx).NewSelect().Model((*T)(nil))
	for _, rel := range q.joins {
		sq = sq.Relation(rel)
	}
	return where(sq).Count(ctx)
}

func (r *BaseRepository[T]) FindBy(ctx context.Context, method string, args []any, opts ...QueryOption) ([]*T, error) {
	q, err := r.derivedOf(method, SubjectFind)
	if err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	where, err := r.criteria(q, args, o)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, o, func(sq *bun.SelectQuery) (*bun.SelectQuery, error) {
		sq, err := r.applySort(where(sq), q.Sort)
		if err != nil {
			return nil, err
		}
		if q.Limit > 0 {
			sq = sq.Limit(q.Limit)
		}
		return sq, nil
	})
}

// FindOneBy returns the single match. No match is ErrNotFound, more than one
// is ErrIncorrectResultSize.
func (r *BaseRepository[T]) FindOneBy(ctx context.Context, method string, args []any, opts ...QueryOption) (*T, error) {
	q, err := r.derivedOf(method, SubjectFind)
	if err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	where, err := r.criteria(q, args, o)
	if err != nil {
		return nil, err
	}
	limit := 2
	if q.Limit == 1 {
		limit = 1
	}
	entities, err := r.find(ctx, o, func(sq *bun.SelectQuery) (*bun.SelectQuery, error) {
		sq, err := r.applySort(where(sq), q.Sort)
		if err != nil {
			return nil, err
		}
		return sq.Limit(limit), nil
	})
	if err != nil {
		return nil, err
	}
	switch len(entities) {
	case 0:
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, method, sql.ErrNoRows)
	case 1:
		return entities[0], nil
	default:
		return nil, fmt.Errorf("%w: %s matched more than one row", ErrIncorrectResultSize, method)
	}
}

func (r *BaseRepository[T]) FindPageBy(ctx context.Context, method string, args []any, req *types.PageRequest, opts ...QueryOption) (*types.Page[T], error) {
	q, err := r.derivedOf(method, SubjectFind)
	if err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	where, err := r.criteria(q, args, o)
	if err != nil {
		return nil, err
	}
	sorted := func(sq *bun.SelectQuery) (*bun.SelectQuery, error) {
		return r.applySort(where(sq), q.Sort)
	}
	return r.pageOf(ctx, req, o, sorted, func(ctx context.Context) (int, error) {
		return r.countQuery(ctx, q, where)
	})
}

func (r *BaseRepository[T]) FindSliceBy(ctx context.Context, method string, args []any, req *types.PageRequest, opts ...QueryOption) (*types.Slice[T], error) {
	q, err := r.derivedOf(method, SubjectFind)
	if err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	where, err := r.criteria(q, args, o)
	if err != nil {
		return nil, err
	}
	sorted := func(sq *bun.SelectQuery) (*bun.SelectQuery, error) {
		return r.applySort(where(sq), q.Sort)
	}
	return r.sliceOf(ctx, req, o, sorted)
}

func (r *BaseRepository[T]) CountBy(ctx context.Context, method string, args ...any) (int, error) {
	q, err := r.derivedOf(method, SubjectCount)
	if err != nil {
		return 0, err
	}
	where, err := r.criteria(q, args, nil)
	if err != nil {
		return 0, err
	}
	return r.countQuery(ctx, q, where)
}

func (r *BaseRepository[T]) ExistsBy(ctx context.Context, method string, args ...any) (bool, error) {
	q, err := r.derivedOf(method, SubjectExists)
	if err != nil {
		return false, err
	}
	where, err := r.criteria(q, args, nil)
	if err != nil {
		return false, err
	}
	sq := r.Conn(ctx).NewSelect().Model((*T)(nil))
	for _, rel := range q.joins {
		sq = sq.Relation(rel)
	}
	return where(sq).Exists(ctx)
}

// DeleteBy loads the matching entities and deletes each of them in one
// transaction. It returns how many were deleted.
func (r *BaseRepository[T]) DeleteBy(ctx context.Context, method string, args ...any) (int, error) {
	q, err := r.derivedOf(method, SubjectDelete)
	if err != nil {
		return 0, err
	}
	where, err := r.criteria(q, args, nil)
	if err != nil {
		return 0, err
	}
	n := 0
	err = r.RunInTx(ctx, func(ctx context.Context) error {
		entities, err := r.find(ctx, collectOptions(nil), func(sq *bun.SelectQuery) (*bun.SelectQuery, error) {
			sq = where(sq)
			if q.Limit > 0 {
				sq = sq.Limit(q.Limit)
			}
			return sq, nil
		})
		if err != nil {
			return err
		}
		for _, e := range entities {
			if err := r.Delete(ctx, e); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// findWindowBy reads one page window without counting, for list results of
// a paged call.
func (r *BaseRepository[T]) findWindowBy(ctx context.Context, method string, args []any, req *types.PageRequest, opts ...QueryOption) ([]*T, error) {
	q, err := r.derivedOf(method, SubjectFind)
	if err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	where, err := r.criteria(q, args, o)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, o, func(sq *bun.SelectQuery) (*bun.SelectQuery, error) {
		sq, err := r.applySort(where(sq), q.Sort.And(req.GetSort()))
		if err != nil {
			return nil, err
		}
		return sq.Limit(req.GetPageSize()).Offset(req.GetOffset()), nil
	})
}
