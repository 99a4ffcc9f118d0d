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
	"errors"

	"github.com/uptrace/bun"
)

var errNoDB = errors.New("database not initialized")

// DBSource hands out the current connection. database.Manager and
// database.BaseDatabaseFactory satisfy it, so a repository built from either
// keeps working after the manager reconnects.
type DBSource interface {
	GetDB() *bun.DB
}

type fixedDB struct{ db *bun.DB }

func (f fixedDB) GetDB() *bun.DB { return f.db }

// dbHandle resolves the DB on every call. While the source has no connection
// the DB seen at construction is used, so calls return "database is closed"
// instead of dereferencing nil.
type dbHandle struct {
	src     DBSource
	initial *bun.DB
}

func newDBHandle(src DBSource) (dbHandle, error) {
	if src == nil {
		return dbHandle{}, errNoDB
	}
	db := src.GetDB()
	if db == nil {
		return dbHandle{}, errNoDB
	}
	return dbHandle{src: src, initial: db}, nil
}

func (h dbHandle) get() *bun.DB {
	if db := h.src.GetDB(); db != nil {
		return db
	}
	return h.initial
}
