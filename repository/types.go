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

	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// CrudRepository defines basic CRUD operations for a generic entity type.
type CrudRepository[T any] interface {
	Save(ctx context.Context, entity *T) (*T, error)

	SaveAll(ctx context.Context, entities ...*T) ([]*T, error)

	FindByID(ctx context.Context, id int64, opts ...QueryOption) (*T, error)

	ExistsByID(ctx context.Context, id int64) (bool, error)

	FindAll(ctx context.Context, opts ...QueryOption) ([]*T, error)

	FindAllByID(ctx context.Context, ids []int64, opts ...QueryOption) ([]*T, error)

	Count(ctx context.Context) (int, error)

	Delete(ctx context.Context, entity *T) error

	DeleteByID(ctx context.Context, id int64) error

	DeleteAll(ctx context.Context) (int, error)

	DeleteAllInBatch(ctx context.Context) (int64, error)

	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)
}

// PagingAndSortingRepository adds sorted, paged and sliced listings.
type PagingAndSortingRepository[T any] interface {
	FindAllSorted(ctx context.Context, sort types.Sort, opts ...QueryOption) ([]*T, error)
	FindAllPage(ctx context.Context, page *types.PageRequest, opts ...QueryOption) (*types.Page[T], error)
	FindAllSlice(ctx context.Context, page *types.PageRequest, opts ...QueryOption) (*types.Slice[T], error)
	Page(ctx context.Context, page *types.PageRequest) (*types.Page[T], error)
}

// TransactionRepository defines CRUD operations executed within a transaction.
type TransactionRepository[T any] interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	SaveWithTx(ctx context.Context, tx *bun.Tx, entity *T) (*T, error)
	UpdateWithTx(ctx context.Context, tx *bun.Tx, entity *T) error
	DeleteWithTx(ctx context.Context, tx *bun.Tx, id int64) error
}

// DerivedQueryRepository runs queries named like findByUsernameAndAgeGreaterThan.
type DerivedQueryRepository[T any] interface {
	FindBy(ctx context.Context, method string, args []any, opts ...QueryOption) ([]*T, error)
	FindOneBy(ctx context.Context, method string, args []any, opts ...QueryOption) (*T, error)
	FindPageBy(ctx context.Context, method string, args []any, page *types.PageRequest, opts ...QueryOption) (*types.Page[T], error)
	FindSliceBy(ctx context.Context, method string, args []any, page *types.PageRequest, opts ...QueryOption) (*types.Slice[T], error)
	CountBy(ctx context.Context, method string, args ...any) (int, error)
	ExistsBy(ctx context.Context, method string, args ...any) (bool, error)
	DeleteBy(ctx context.Context, method string, args ...any) (int, error)
}

// Repository combines CRUD, paging, derived and transactional operations and
// exposes Bun query builders for advanced use cases.
type Repository[T any] interface {
	CrudRepository[T]
	PagingAndSortingRepository[T]
	TransactionRepository[T]
	DerivedQueryRepository[T]
	Dialect() schema.Dialect
	Table() *schema.Table
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
