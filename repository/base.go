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
	"reflect"
	"sync"

	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

// BaseRepository is the generic repository every entity repository embeds.
type BaseRepository[T any] struct {
	db      dbHandle
	table   *schema.Table
	typ     reflect.Type
	queries sync.Map
}

// NewRepository returns a generic repository backed by the provided Bun DB.
// The derived query methods are parsed and checked against the entity table
// up front, so a misspelled property fails here rather than on first use.
func NewRepository[T any](db *bun.DB, methods ...string) (*BaseRepository[T], error) {
	if db == nil {
		return nil, errNoDB
	}
	return NewRepositoryFrom[T](fixedDB{db}, methods...)
}

// NewRepositoryFrom resolves the DB through src on every call.
func NewRepositoryFrom[T any](src DBSource, methods ...string) (*BaseRepository[T], error) {
	h, err := newDBHandle(src)
	if err != nil {
		return nil, err
	}
	typ := reflect.TypeOf((*T)(nil))
	r := &BaseRepository[T]{db: h, typ: typ, table: h.initial.Table(typ.Elem())}
	if len(r.table.PKs) != 1 {
		return nil, fmt.Errorf("%s must have exactly one primary key", r.table.TypeName)
	}
	for _, method := range methods {
		if _, err := r.derived(method); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *BaseRepository[T]) DB() *bun.DB { return r.db.get() }

func (r *BaseRepository[T]) Dialect() schema.Dialect { return r.DB().Dialect() }

func (r *BaseRepository[T]) Table() *schema.Table { return r.table }

func (r *BaseRepository[T]) NewSelect() *bun.SelectQuery { return r.DB().NewSelect() }

func (r *BaseRepository[T]) NewInsert() *bun.InsertQuery { return r.DB().NewInsert() }

func (r *BaseRepository[T]) NewUpdate() *bun.UpdateQuery { return r.DB().NewUpdate() }

func (r *BaseRepository[T]) NewDelete() *bun.DeleteQuery { return r.DB().NewDelete() }

// Conn returns the transaction bound to ctx, or the DB.
func (r *BaseRepository[T]) Conn(ctx context.Context) bun.IDB { return conn(ctx, r.DB()) }

func (r *BaseRepository[T]) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunInTx(ctx, r.DB(), fn)
}

func (r *BaseRepository[T]) pk() *schema.Field { return r.table.PKs[0] }

func (r *BaseRepository[T]) isNew(entity *T) bool {
	return reflect.ValueOf(entity).Elem().FieldByIndex(r.pk().Index).IsZero()
}

func (r *BaseRepository[T]) immutable(entity *T) []string {
	if ic, ok := any(entity).(immutableColumns); ok {
		return ic.ImmutableColumns()
	}
	return nil
}

// manage attaches loaded entities to the session bound to ctx, replacing
// each with the managed instance of the same id.
func (r *BaseRepository[T]) manage(ctx context.Context, o *queryOptions, entities []*T) []*T {
	s := SessionFrom(ctx)
	if s == nil || o.readOnly {
		return entities
	}
	for i, e := range entities {
		entities[i] = s.Attach(e).(*T)
	}
	return entities
}

type selectBuilder func(q *bun.SelectQuery) (*bun.SelectQuery, error)

func (r *BaseRepository[T]) find(ctx context.Context, o *queryOptions, build selectBuilder) ([]*T, error) {
	entities := make([]*T, 0)
	q := r.Conn(ctx).NewSelect().Model(&entities)
	var err error
	if build != nil {
		if q, err = build(q); err != nil {
			return nil, err
		}
	}
	if q, err = o.apply(ctx, q); err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return r.manage(ctx, o, entities), nil
}

// applySort orders by entity properties; "username" and "Username" both
// resolve to the username column.
func (r *BaseRepository[T]) applySort(q *bun.SelectQuery, sort types.Sort) (*bun.SelectQuery, error) {
	for _, o := range sort {
		f, ok := fieldByProperty(r.table, o.Property)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no property %s", ErrUnknownProperty, r.table.TypeName, o.Property)
		}
		if o.Direction == types.DESC {
			q = q.OrderExpr("?TableAlias.? DESC", bun.Ident(f.Name))
		} else {
			q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(f.Name))
		}
	}
	return q, nil
}

func withFilter(filter *types.QueryFilter) func(q *bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if filter != nil {
			q = q.Where(filter.Schema, filter.Args...)
		}
		return q
	}
}

func infallible(where func(*bun.SelectQuery) *bun.SelectQuery) selectBuilder {
	return func(q *bun.SelectQuery) (*bun.SelectQuery, error) { return where(q), nil }
}

func (r *BaseRepository[T]) pageOf(ctx context.Context, req *types.PageRequest, o *queryOptions,
	build selectBuilder, count func(ctx context.Context) (int, error)) (*types.Page[T], error) {
	content, err := r.find(ctx, o, func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		q, err := build(q)
		if err != nil {
			return nil, err
		}
		q, err = r.applySort(q, req.GetSort())
		if err != nil {
			return nil, err
		}
		return q.Limit(req.GetPageSize()).Offset(req.GetOffset()), nil
	})
	if err != nil {
		return nil, err
	}
	total, err := types.ResolveTotal(req, len(content), func() (int, error) { return count(ctx) })
	if err != nil {
		return nil, err
	}
	return types.NewPage(content, req, total), nil
}

func (r *BaseRepository[T]) sliceOf(ctx context.Context, req *types.PageRequest, o *queryOptions,
	build selectBuilder) (*types.Slice[T], error) {
	fetched, err := r.find(ctx, o, func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		q, err := build(q)
		if err != nil {
			return nil, err
		}
		q, err = r.applySort(q, req.GetSort())
		if err != nil {
			return nil, err
		}
		return q.Limit(req.GetPageSize() + 1).Offset(req.GetOffset()), nil
	})
	if err != nil {
		return nil, err
	}
	return types.NewSlice(fetched, req), nil
}

func (r *BaseRepository[T]) Save(ctx context.Context, entity *T) (*T, error) {
	return r.save(ctx, r.Conn(ctx), entity)
}

// SaveAll saves the entities in one transaction.
func (r *BaseRepository[T]) SaveAll(ctx context.Context, entities ...*T) ([]*T, error) {
	saved := make([]*T, 0, len(entities))
	err := r.RunInTx(ctx, func(ctx context.Context) error {
		for _, e := range entities {
			s, err := r.Save(ctx, e)
			if err != nil {
				return err
			}
			saved = append(saved, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// save inserts a new entity or merges a detached one, then makes it the
// managed instance of the bound session.
func (r *BaseRepository[T]) save(ctx context.Context, db bun.IDB, entity *T) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: entity must not be nil", ErrInvalidArguments)
	}
	if r.isNew(entity) {
		if _, err := db.NewInsert().Model(entity).Exec(ctx); err != nil {
			return nil, err
		}
	} else if err := r.merge(ctx, db, entity); err != nil {
		return nil, err
	}
	if s := SessionFrom(ctx); s != nil {
		return s.merge(entity).(*T), nil
	}
	return entity, nil
}

// merge upserts a detached entity. The insert hook stamps creation audit
// values the SET list leaves out, so those columns are read back afterwards.
func (r *BaseRepository[T]) merge(ctx context.Context, db bun.IDB, entity *T) error {
	immutable := r.immutable(entity)
	excluded := make(map[string]bool, len(immutable))
	for _, c := range immutable {
		excluded[c] = true
	}
	var fields []string
	for _, f := range r.table.DataFields {
		if !excluded[f.Name] {
			fields = append(fields, f.Name)
		}
	}
	if err := r.multipleUpsert(ctx, db, fields, []string{r.pk().Name}, entity); err != nil {
		return err
	}
	if len(immutable) == 0 {
		return nil
	}
	if err := db.NewSelect().Model(entity).Column(immutable...).WherePK().Scan(ctx); err != nil {
		return fmt.Errorf("failed to reload %s after merge: %w", r.table.TypeName, err)
	}
	return nil
}

func (r *BaseRepository[T]) FindByID(ctx context.Context, id int64, opts ...QueryOption) (*T, error) {
	o := collectOptions(opts)
	if s := SessionFrom(ctx); s != nil && !o.readOnly && o.lock == types.LockNone && len(o.relations) == 0 {
		if e, ok := s.Lookup(r.typ, id); ok {
			return e.(*T), nil
		}
	}
	entities, err := r.find(ctx, o, func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		return q.Where("?TableAlias.? = ?", bun.Ident(r.pk().Name), id), nil
	})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s id=%d: %w", ErrNotFound, r.table.TypeName, id, sql.ErrNoRows)
	}
	return entities[0], nil
}

func (r *BaseRepository[T]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.Conn(ctx).NewSelect().
		Model((*T)(nil)).
		Where("?TableAlias.? = ?", bun.Ident(r.pk().Name), id).
		Exists(ctx)
}

func (r *BaseRepository[T]) FindAll(ctx context.Context, opts ...QueryOption) ([]*T, error) {
	return r.find(ctx, collectOptions(opts), nil)
}

func (r *BaseRepository[T]) FindAllByID(ctx context.Context, ids []int64, opts ...QueryOption) ([]*T, error) {
	if len(ids) == 0 {
		return make([]*T, 0), nil
	}
	return r.find(ctx, collectOptions(opts), func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		return q.Where("?TableAlias.? IN (?)", bun.Ident(r.pk().Name), bun.In(ids)), nil
	})
}

func (r *BaseRepository[T]) FindAllSorted(ctx context.Context, sort types.Sort, opts ...QueryOption) ([]*T, error) {
	return r.find(ctx, collectOptions(opts), func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		return r.applySort(q, sort)
	})
}

// FindAllPage returns one page; the filter of the request, if any, applies
// to both the content and the count query.
func (r *BaseRepository[T]) FindAllPage(ctx context.Context, req *types.PageRequest, opts ...QueryOption) (*types.Page[T], error) {
	where := withFilter(req.GetFilter())
	return r.pageOf(ctx, req, collectOptions(opts), infallible(where), func(ctx context.Context) (int, error) {
		return where(r.Conn(ctx).NewSelect().Model((*T)(nil))).Count(ctx)
	})
}

func (r *BaseRepository[T]) FindAllSlice(ctx context.Context, req *types.PageRequest, opts ...QueryOption) (*types.Slice[T], error) {
	return r.sliceOf(ctx, req, collectOptions(opts), infallible(withFilter(req.GetFilter())))
}

func (r *BaseRepository[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Page[T], error) {
	return r.FindAllPage(ctx, pageRequest)
}

func (r *BaseRepository[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	return r.find(ctx, collectOptions(nil), func(q *bun.SelectQuery) (*bun.SelectQuery, error) {
		return withFilter(filter)(q), nil
	})
}

func (r *BaseRepository[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	return r.List(ctx, types.NewQueryFilter(query, args...))
}

func (r *BaseRepository[T]) Count(ctx context.Context) (int, error) {
	return r.Conn(ctx).NewSelect().Model((*T)(nil)).Count(ctx)
}

func (r *BaseRepository[T]) Delete(ctx context.Context, entity *T) error {
	if entity == nil {
		return fmt.Errorf("%w: entity must not be nil", ErrInvalidArguments)
	}
	if _, err := r.Conn(ctx).NewDelete().Model(entity).WherePK().Exec(ctx); err != nil {
		return err
	}
	if s := SessionFrom(ctx); s != nil {
		s.Detach(entity)
	}
	return nil
}

// DeleteByID ignores ids that do not exist.
func (r *BaseRepository[T]) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.Conn(ctx).NewDelete().
		Model((*T)(nil)).
		Where("? = ?", bun.Ident(r.pk().Name), id).
		Exec(ctx)
	if err == nil {
		if s := SessionFrom(ctx); s != nil {
			if e, ok := s.Lookup(r.typ, id); ok {
				s.Detach(e)
			}
		}
	}
	return err
}

// DeleteAll loads every entity and deletes them one by one.
func (r *BaseRepository[T]) DeleteAll(ctx context.Context) (int, error) {
	n := 0
	err := r.RunInTx(ctx, func(ctx context.Context) error {
		entities, err := r.FindAll(ctx)
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

// DeleteAllInBatch issues a single DELETE and bypasses the session.
func (r *BaseRepository[T]) DeleteAllInBatch(ctx context.Context) (int64, error) {
	res, err := r.Conn(ctx).NewDelete().Model((*T)(nil)).Where("1 = 1").Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *BaseRepository[T]) SaveWithTx(ctx context.Context, tx *bun.Tx, entity *T) (*T, error) {
	return r.save(ctx, tx, entity)
}

func (r *BaseRepository[T]) UpdateWithTx(ctx context.Context, tx *bun.Tx, entity *T) error {
	_, err := tx.NewUpdate().Model(entity).WherePK().ExcludeColumn(r.immutable(entity)...).Exec(ctx)
	return err
}

func (r *BaseRepository[T]) DeleteWithTx(ctx context.Context, tx *bun.Tx, id int64) error {
	_, err := tx.NewDelete().Model((*T)(nil)).Where("? = ?", bun.Ident(r.pk().Name), id).Exec(ctx)
	return err
}

func (r *BaseRepository[T]) multipleUpsert(ctx context.Context, db bun.IDB, fields []string, duplicateKeys []string, entities ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	if r.DB().HasFeature(feature.InsertOnConflict) {
		return r.upsertWithPostgresqlOrSQLite(ctx, db.NewInsert(), fields, duplicateKeys, entities)
	} else if r.DB().HasFeature(feature.InsertOnDuplicateKey) {
		return r.upsertWithMySQL(ctx, db.NewInsert(), fields, entities)
	}
	return r.upsertFallback(ctx, db, fields, entities)
}

func (r *BaseRepository[T]) upsertWithMySQL(ctx context.Context, insertQuery *bun.InsertQuery, fields []string, entities []*T) error {
	insertQuery = insertQuery.Model(&entities).On("DUPLICATE KEY UPDATE")
	for _, field := range fields {
		insertQuery = insertQuery.Set("? = VALUES(?)", bun.Ident(field), bun.Ident(field))
	}
	_, err := insertQuery.Exec(ctx)
	return err
}

func (r *BaseRepository[T]) upsertWithPostgresqlOrSQLite(ctx context.Context, insertQuery *bun.InsertQuery, fields []string, duplicateKeys []string, entities []*T) error {
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{"id"}
	}
	keys := make([]schema.Ident, 0, len(duplicateKeys))
	for _, k := range duplicateKeys {
		keys = append(keys, schema.Ident(k))
	}
	insertQuery = insertQuery.Model(&entities).On("CONFLICT (?) DO UPDATE", bun.In(keys))
	for _, field := range fields {
		insertQuery = insertQuery.Set("? = EXCLUDED.?", bun.Ident(field), bun.Ident(field))
	}
	_, err := insertQuery.Exec(ctx)
	return err
}

func (r *BaseRepository[T]) upsertFallback(ctx context.Context, db bun.IDB, fields []string, entities []*T) error {
	for _, entity := range entities {
		res, err := db.NewUpdate().Model(entity).Column(fields...).WherePK().Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert failed for entity: update error: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			continue
		}
		if _, err := db.NewInsert().Model(entity).Exec(ctx); err != nil {
			return fmt.Errorf("upsert failed for entity: insert error: %w", err)
		}
	}
	return nil
}
