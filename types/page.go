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

package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DefaultPageSize is used when a PageRequest is built with a size below 1.
const DefaultPageSize = 10

// QueryFilter describes a WHERE clause schema and its argument values.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// Order is one sort criterion over an entity property (Go field name or column).
type Order struct {
	Property  string    `json:"property"`
	Direction Direction `json:"-"`
}

func Asc(property string) Order { return Order{Property: property, Direction: ASC} }

func Desc(property string) Order { return Order{Property: property, Direction: DESC} }

func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Property  string `json:"property"`
		Direction string `json:"direction"`
	}{o.Property, o.Direction.Name()})
}

// Sort is an ordered list of Order criteria. A nil Sort is unsorted.
type Sort []Order

// SortBy sorts every property in the same direction.
func SortBy(dir Direction, properties ...string) Sort {
	s := make(Sort, 0, len(properties))
	for _, p := range properties {
		s = append(s, Order{Property: p, Direction: dir})
	}
	return s
}

func (s Sort) And(other Sort) Sort {
	out := make(Sort, 0, len(s)+len(other))
	out = append(out, s...)
	return append(out, other...)
}

func (s Sort) IsSorted() bool { return len(s) > 0 }

// ParseSort parses request parameters of the form "prop[,prop...][,asc|desc]".
// A trailing direction applies to every property of the same parameter.
func ParseSort(params []string) (Sort, error) {
	var sort Sort
	for _, param := range params {
		parts := strings.Split(param, ",")
		dir := ASC
		if n := len(parts); n > 1 {
			if d, err := ParseDirection(parts[n-1]); err == nil {
				dir = d
				parts = parts[:n-1]
			}
		}
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, err := ParseDirection(p); err == nil {
				return nil, fmt.Errorf("sort parameter %q has no property", param)
			}
			sort = append(sort, Order{Property: p, Direction: dir})
		}
	}
	return sort, nil
}

// PageRequest describes a zero-based page window, ordering, and an optional filter.
type PageRequest struct {
	page     int
	pageSize int
	sort     Sort
	filter   *QueryFilter
}

// NewPageRequest constructs a PageRequest with sort settings.
func NewPageRequest(page int, pageSize int, sort Sort) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize, sort: sort}
}

// PageRequestOf sorts the listed properties in one direction.
func PageRequestOf(page int, pageSize int, dir Direction, properties ...string) *PageRequest {
	return NewPageRequest(page, pageSize, SortBy(dir, properties...))
}

// NewPageRequestWithFilter constructs a PageRequest with a filter and sort.
func NewPageRequestWithFilter(page int, pageSize int, filter *QueryFilter, sort Sort) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize, sort: sort, filter: filter}
}

// NewDefaultPageRequest constructs a PageRequest with no filter or ordering.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil)
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = DefaultPageSize
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 0 {
		p.page = 0
	}
	return p.page
}

// MaxPage is the largest page number whose offset fits in an int.
func MaxPage(pageSize int) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return math.MaxInt / pageSize
}

// GetOffset saturates at the offset of MaxPage instead of wrapping around.
func (p *PageRequest) GetOffset() int {
	size := p.GetPageSize()
	page := p.GetPage()
	if page > MaxPage(size) {
		page = MaxPage(size)
	}
	return page * size
}

func (p *PageRequest) GetFilter() *QueryFilter {
	return p.filter
}

func (p *PageRequest) GetSort() Sort {
	return p.sort
}

func (p *PageRequest) Next() *PageRequest {
	return &PageRequest{page: p.GetPage() + 1, pageSize: p.GetPageSize(), sort: p.sort, filter: p.filter}
}

func (p *PageRequest) Previous() *PageRequest {
	if p.GetPage() == 0 {
		return p.First()
	}
	return &PageRequest{page: p.GetPage() - 1, pageSize: p.GetPageSize(), sort: p.sort, filter: p.filter}
}

func (p *PageRequest) First() *PageRequest {
	return &PageRequest{page: 0, pageSize: p.GetPageSize(), sort: p.sort, filter: p.filter}
}

// ResolveTotal returns the total element count for a page whose content has
// contentLen rows. count runs only when the total can't be derived from the content.
func ResolveTotal(req *PageRequest, contentLen int, count func() (int, error)) (int64, error) {
	offset := req.GetOffset()
	size := req.GetPageSize()
	if offset == 0 && size > contentLen {
		return int64(contentLen), nil
	}
	if offset > 0 && contentLen != 0 && size > contentLen {
		return int64(offset + contentLen), nil
	}
	total, err := count()
	if err != nil {
		return 0, err
	}
	return int64(total), nil
}

// Page holds one page of content along with the total element count.
type Page[T any] struct {
	Content       []*T
	Number        int
	Size          int
	TotalElements int64
	Sort          Sort
}

// NewPage builds a page for the request. A nil content becomes an empty slice.
func NewPage[T any](content []*T, req *PageRequest, total int64) *Page[T] {
	if content == nil {
		content = make([]*T, 0)
	}
	return &Page[T]{
		Content:       content,
		Number:        req.GetPage(),
		Size:          req.GetPageSize(),
		TotalElements: total,
		Sort:          req.GetSort(),
	}
}

func (p *Page[T]) TotalPages() int {
	if p.Size == 0 {
		return 0
	}
	return int((p.TotalElements + int64(p.Size) - 1) / int64(p.Size))
}

func (p *Page[T]) NumberOfElements() int { return len(p.Content) }

func (p *Page[T]) HasPrevious() bool { return p.Number > 0 }

func (p *Page[T]) HasNext() bool { return p.Number+1 < p.TotalPages() }

func (p *Page[T]) IsFirst() bool { return !p.HasPrevious() }

func (p *Page[T]) IsLast() bool { return !p.HasNext() }

func (p *Page[T]) IsEmpty() bool { return len(p.Content) == 0 }

func (p *Page[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Content          []*T  `json:"content"`
		Number           int   `json:"number"`
		Size             int   `json:"size"`
		TotalElements    int64 `json:"totalElements"`
		TotalPages       int   `json:"totalPages"`
		NumberOfElements int   `json:"numberOfElements"`
		First            bool  `json:"first"`
		Last             bool  `json:"last"`
		Empty            bool  `json:"empty"`
		Sort             Sort  `json:"sort"`
	}{
		Content:          p.Content,
		Number:           p.Number,
		Size:             p.Size,
		TotalElements:    p.TotalElements,
		TotalPages:       p.TotalPages(),
		NumberOfElements: p.NumberOfElements(),
		First:            p.IsFirst(),
		Last:             p.IsLast(),
		Empty:            p.IsEmpty(),
		Sort:             nonNilSort(p.Sort),
	})
}

// Slice is a page window without a total count; it only knows whether more rows follow.
type Slice[T any] struct {
	Content []*T
	Number  int
	Size    int
	Sort    Sort
	hasNext bool
}

// NewSlice builds a slice from up to size+1 fetched rows, dropping the lookahead row.
func NewSlice[T any](fetched []*T, req *PageRequest) *Slice[T] {
	size := req.GetPageSize()
	hasNext := len(fetched) > size
	if hasNext {
		fetched = fetched[:size]
	}
	if fetched == nil {
		fetched = make([]*T, 0)
	}
	return &Slice[T]{
		Content: fetched,
		Number:  req.GetPage(),
		Size:    size,
		Sort:    req.GetSort(),
		hasNext: hasNext,
	}
}

func (s *Slice[T]) HasNext() bool { return s.hasNext }

func (s *Slice[T]) HasPrevious() bool { return s.Number > 0 }

func (s *Slice[T]) IsFirst() bool { return !s.HasPrevious() }

func (s *Slice[T]) IsLast() bool { return !s.hasNext }

func (s *Slice[T]) NumberOfElements() int { return len(s.Content) }

func (s *Slice[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Content          []*T `json:"content"`
		Number           int  `json:"number"`
		Size             int  `json:"size"`
		NumberOfElements int  `json:"numberOfElements"`
		First            bool `json:"first"`
		Last             bool `json:"last"`
		Sort             Sort `json:"sort"`
	}{s.Content, s.Number, s.Size, s.NumberOfElements(), s.IsFirst(), s.IsLast(), nonNilSort(s.Sort)})
}

// MapPage converts page content, keeping the paging metadata.
func MapPage[T any, R any](p *Page[T], fn func(*T) *R) *Page[R] {
	content := make([]*R, 0, len(p.Content))
	for _, item := range p.Content {
		content = append(content, fn(item))
	}
	return &Page[R]{
		Content:       content,
		Number:        p.Number,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		Sort:          p.Sort,
	}
}

// MapSlice converts slice content, keeping the window metadata.
func MapSlice[T any, R any](s *Slice[T], fn func(*T) *R) *Slice[R] {
	content := make([]*R, 0, len(s.Content))
	for _, item := range s.Content {
		content = append(content, fn(item))
	}
	return &Slice[R]{Content: content, Number: s.Number, Size: s.Size, Sort: s.Sort, hasNext: s.hasNext}
}

func nonNilSort(s Sort) Sort {
	if s == nil {
		return Sort{}
	}
	return s
}
