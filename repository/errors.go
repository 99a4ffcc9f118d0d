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

import "errors"

var (
	// ErrNotFound wraps sql.ErrNoRows for lookups that matched nothing.
	ErrNotFound            = errors.New("entity not found")
	ErrIncorrectResultSize = errors.New("incorrect result size")
	// ErrTransactionRequired is returned by lock queries run outside RunInTx.
	ErrTransactionRequired = errors.New("no transaction is in progress")
	ErrUnknownProperty     = errors.New("unknown property")
	ErrInvalidArguments    = errors.New("invalid arguments")
	ErrInvalidQuery        = errors.New("invalid derived query")
)
