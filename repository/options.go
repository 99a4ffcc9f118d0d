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

	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type queryOptions struct {
	readOnly  bool
	lock      types.LockMode
	relations []string
}

// QueryOption is a hint applied to a select.
type QueryOption func(*queryOptions)

// ReadOnly keeps results out of the session so they are never dirty-checked.
func ReadOnly() QueryOption {
	return func(o *queryOptions) { o.readOnly = true }
}

// Lock takes a row lock. The context must carry a transaction.
func Lock(mode types.LockMode) QueryOption {
	return func(o *queryOptions) { o.lock = mode }
}

// FetchJoin loads the named relations with the entity.
func FetchJoin(relations ...string) QueryOption {
	return func(o *queryOptions) { o.relations = append(o.relations, relations...) }
}

func collectOptions(opts []QueryOption) *queryOptions {
	o := &queryOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *queryOptions) hasRelation(name string) bool {
	for _, r := range o.relations {
		if r == name {
			return true
		}
	}
	return false
}

func (o *queryOptions) apply(ctx context.Context, q *bun.SelectQuery) (*bun.SelectQuery, error) {
	for _, rel := range o.relations {
		q = q.Relation(rel)
	}
	if o.lock == types.LockNone {
		return q, nil
	}
	if !o.lock.IsValid() {
		return nil, ErrInvalidArguments
	}
	if _, ok := TxFrom(ctx); !ok {
		return nil, ErrTransactionRequired
	}
	if q.Dialect().Name() == dialect.SQLite {
		database.GetLogger().Debug("Row locks are not supported by sqlite, lock clause omitted", "lock", o.lock.Name())
		return q, nil
	}
	return q.For(o.lock.Clause()), nil
}
