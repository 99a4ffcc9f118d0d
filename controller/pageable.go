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

package controller

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tomoncle/datajpa/config"
	"github.com/tomoncle/datajpa/types"
)

// PageableDefault is the per-endpoint fallback when the request omits size or sort.
type PageableDefault struct {
	Size int
	Sort types.Sort
}

// PageableResolver turns page, size and sort query parameters into a PageRequest.
type PageableResolver struct {
	cfg config.PageableConfig
}

func NewPageableResolver(cfg config.PageableConfig) *PageableResolver {
	return &PageableResolver{cfg: cfg}
}

// Resolve reads the request. Unparsable or negative numbers fall back to the
// defaults and sizes above the configured maximum are clamped. A page whose
// offset would not fit in an int is rejected.
func (r *PageableResolver) Resolve(c *gin.Context, def PageableDefault) (*types.PageRequest, error) {
	size := def.Size
	if size < 1 {
		size = r.cfg.DefaultPageSize
	}
	if n, ok := queryInt(c, "size"); ok && n > 0 {
		size = n
	}
	if r.cfg.MaxPageSize > 0 && size > r.cfg.MaxPageSize {
		size = r.cfg.MaxPageSize
	}

	page := 0
	if n, ok := queryInt(c, "page"); ok {
		if r.cfg.OneIndexedParameters {
			n--
		}
		if n > 0 {
			page = n
		}
	}
	if page > types.MaxPage(size) {
		return nil, fmt.Errorf("%w: page %d is out of range for size %d", ErrBadRequest, page, size)
	}

	sort := def.Sort
	if params := c.QueryArray("sort"); len(params) > 0 {
		parsed, err := types.ParseSort(params)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		if parsed.IsSorted() {
			sort = parsed
		}
	}
	return types.NewPageRequest(page, size, sort), nil
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
