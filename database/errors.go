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

package database

import (
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// SQLError is the driver-independent kind of a database error.
type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

var sqlErrorNames = map[SQLError]string{
	NoRowsErr:                   "no rows",
	NoIndexErr:                  "no index",
	NoColumnErr:                 "no column",
	ExistIndexErr:               "index exists",
	ExistColumnErr:              "column exists",
	NoTableErr:                  "no table",
	ExistTableErr:               "table exists",
	DuplicateKeyErr:             "duplicate key",
	NotNullViolationErr:         "not null violation",
	ForeignKeyViolationErr:      "foreign key violation",
	CheckConstraintViolationErr: "check constraint violation",
	DataTruncatedErr:            "data truncated",
	InvalidTypeCastErr:          "invalid type cast",
}

func (e SQLError) String() string {
	if name, ok := sqlErrorNames[e]; ok {
		return name
	}
	return "unknown"
}

var mysqlErrorKinds = map[uint16]SQLError{
	1048: NotNullViolationErr,
	1050: ExistTableErr,
	1054: NoColumnErr,
	1060: ExistColumnErr,
	1061: ExistIndexErr,
	1062: DuplicateKeyErr,
	1091: NoIndexErr,
	1146: NoTableErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1265: DataTruncatedErr,
	1451: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
}

var sqlStateKinds = map[string]SQLError{
	"22001": DataTruncatedErr,
	"23502": NotNullViolationErr,
	"23503": ForeignKeyViolationErr,
	"23505": DuplicateKeyErr,
	"23514": CheckConstraintViolationErr,
	"42701": ExistColumnErr,
	"42703": NoColumnErr,
	"42704": NoIndexErr,
	"42804": InvalidTypeCastErr,
	"42P01": NoTableErr,
	"42P07": ExistTableErr,
}

var sqlStatePattern = regexp.MustCompile(`(?i)sqlstate\s*([0-9a-z]{5})`)

// messagePatterns is matched in order against the lower-cased message of
// errors that carry no code, which is how sqlite reports failures.
var messagePatterns = []struct {
	kind SQLError
	all  []string
}{
	{NoColumnErr, []string{"no such column"}},
	{NoColumnErr, []string{"undefined column"}},
	{NoIndexErr, []string{"no such index"}},
	{NoIndexErr, []string{"index", "does not exist"}},
	{NoTableErr, []string{"no such table"}},
	{NoTableErr, []string{"undefined table"}},
	{ExistIndexErr, []string{"index", "already exists"}},
	{ExistTableErr, []string{"table", "already exists"}},
	{ExistTableErr, []string{"relation", "already exists"}},
	{DuplicateKeyErr, []string{"unique constraint failed"}},
	{DuplicateKeyErr, []string{"duplicate key value"}},
	{NotNullViolationErr, []string{"not null constraint failed"}},
	{NotNullViolationErr, []string{"not-null constraint"}},
	{ForeignKeyViolationErr, []string{"foreign key constraint failed"}},
	{ForeignKeyViolationErr, []string{"foreign key violation"}},
	{CheckConstraintViolationErr, []string{"check constraint"}},
	{DataTruncatedErr, []string{"string data right truncation"}},
	{DataTruncatedErr, []string{"data truncated"}},
	{InvalidTypeCastErr, []string{"datatype mismatch"}},
}

// IsSqlError classifies driver errors of mysql, postgres and sqlite. It
// reports false for errors that do not look like database errors.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true, NoRowsErr
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return true, mysqlErrorKinds[mysqlErr.Number]
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true, sqlStateKinds[strings.ToUpper(string(pqErr.Code))]
	}

	msg := err.Error()
	if m := sqlStatePattern.FindStringSubmatch(msg); m != nil {
		if kind, ok := sqlStateKinds[strings.ToUpper(m[1])]; ok {
			return true, kind
		}
	}
	msg = strings.ToLower(msg)
	for _, p := range messagePatterns {
		if containsAll(msg, p.all) {
			return true, p.kind
		}
	}
	return false, UnknownErr
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
