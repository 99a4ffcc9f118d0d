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
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Subject is what a derived query returns.
type Subject int

const (
	SubjectFind Subject = iota
	SubjectCount
	SubjectExists
	SubjectDelete
)

func (s Subject) String() string {
	switch s {
	case SubjectCount:
		return "count"
	case SubjectExists:
		return "exists"
	case SubjectDelete:
		return "delete"
	default:
		return "find"
	}
}

// PartType is the comparison a single predicate applies to its property.
type PartType int

const (
	SimpleProperty PartType = iota
	NegatingSimpleProperty
	IsNull
	IsNotNull
	Between
	LessThan
	LessThanEqual
	GreaterThan
	GreaterThanEqual
	Before
	After
	Like
	NotLike
	StartingWith
	EndingWith
	Containing
	NotContaining
	In
	NotIn
	True
	False
)

// Keywords are matched as suffixes in this order, so NotNull wins over Null
// and NotIn over In.
var partKeywords = []struct {
	typ      PartType
	keywords []string
}{
	{IsNotNull, []string{"IsNotNull", "NotNull"}},
	{IsNull, []string{"IsNull", "Null"}},
	{Between, []string{"IsBetween", "Between"}},
	{LessThanEqual, []string{"IsLessThanEqual", "LessThanEqual"}},
	{LessThan, []string{"IsLessThan", "LessThan"}},
	{GreaterThanEqual, []string{"IsGreaterThanEqual", "GreaterThanEqual"}},
	{GreaterThan, []string{"IsGreaterThan", "GreaterThan"}},
	{Before, []string{"IsBefore", "Before"}},
	{After, []string{"IsAfter", "After"}},
	{NotLike, []string{"IsNotLike", "NotLike"}},
	{Like, []string{"IsLike", "Like"}},
	{StartingWith, []string{"IsStartingWith", "StartingWith", "StartsWith"}},
	{EndingWith, []string{"IsEndingWith", "EndingWith", "EndsWith"}},
	{NotContaining, []string{"IsNotContaining", "NotContaining", "NotContains"}},
	{Containing, []string{"IsContaining", "Containing", "Contains"}},
	{NotIn, []string{"IsNotIn", "NotIn"}},
	{In, []string{"IsIn", "In"}},
	{True, []string{"IsTrue", "True"}},
	{False, []string{"IsFalse", "False"}},
	{NegatingSimpleProperty, []string{"IsNot", "Not"}},
	{SimpleProperty, []string{"Is", "Equals"}},
}

func (t PartType) numArgs() int {
	switch t {
	case IsNull, IsNotNull, True, False:
		return 0
	case Between:
		return 2
	default:
		return 1
	}
}

// Part is one predicate of a derived query, e.g. AgeGreaterThan.
type Part struct {
	Property   string
	Type       PartType
	IgnoreCase bool

	alias    string
	column   string
	relation string
}

// DerivedQuery is a repository method name parsed into a query. Criteria
// holds OR groups whose parts are ANDed.
type DerivedQuery struct {
	Method   string
	Subject  Subject
	Distinct bool
	Limit    int
	Criteria [][]*Part
	Sort     types.Sort

	joins []string
}

var (
	prefixPattern  = regexp.MustCompile(`^(find|read|get|query|search|stream|count|exists|delete|remove)(\p{Lu}.*?)??By`)
	subjectPattern = regexp.MustCompile(`^(find|read|get|query|search|stream|count|exists|delete|remove)(\p{Lu}.*)?$`)
	limitPattern   = regexp.MustCompile(`(First|Top)(\d*)`)
)

// ParseDerivedQuery parses method names such as findByUsernameAndAgeGreaterThan,
// findTop3ByAgeOrderByUsernameDesc or countByTeamName. Properties are resolved
// later against the entity table.
func ParseDerivedQuery(method string) (*DerivedQuery, error) {
	var prefix, subject, predicate string
	if m := prefixPattern.FindStringSubmatch(method); m != nil {
		prefix, subject, predicate = m[1], m[2], method[len(m[0]):]
		if predicate == "" {
			return nil, fmt.Errorf("%w: %s has no criteria after By", ErrInvalidQuery, method)
		}
	} else if m := subjectPattern.FindStringSubmatch(method); m != nil {
		prefix, subject = m[1], m[2]
	} else {
		return nil, fmt.Errorf("%w: %s does not start with a query prefix", ErrInvalidQuery, method)
	}

	q := &DerivedQuery{Method: method, Distinct: strings.Contains(subject, "Distinct")}
	switch prefix {
	case "count":
		q.Subject = SubjectCount
	case "exists":
		q.Subject = SubjectExists
	case "delete", "remove":
		q.Subject = SubjectDelete
	default:
		q.Subject = SubjectFind
	}
	if m := limitPattern.FindStringSubmatch(subject); m != nil {
		q.Limit = 1
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: %s has an invalid limit", ErrInvalidQuery, method)
			}
			q.Limit = n
		}
	}

	if strings.HasSuffix(predicate, "OrderBy") {
		return nil, fmt.Errorf("%w: %s has no OrderBy property", ErrInvalidQuery, method)
	}
	criteria, orderBy := splitOrderBy(predicate)
	if orderBy != "" {
		sort, err := parseOrderBy(method, orderBy)
		if err != nil {
			return nil, err
		}
		q.Sort = sort
	}
	if criteria == "" {
		return q, nil
	}

	allIgnoreCase := false
	for _, suffix := range []string{"AllIgnoreCase", "AllIgnoringCase"} {
		if strings.HasSuffix(criteria, suffix) {
			criteria = strings.TrimSuffix(criteria, suffix)
			allIgnoreCase = true
			break
		}
	}
	for _, orSource := range splitKeyword(criteria, "Or") {
		var group []*Part
		for _, source := range splitKeyword(orSource, "And") {
			part, err := parsePart(source, allIgnoreCase)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidQuery, method, err)
			}
			group = append(group, part)
		}
		q.Criteria = append(q.Criteria, group)
	}
	return q, nil
}

func parsePart(source string, ignoreCase bool) (*Part, error) {
	for _, suffix := range []string{"IgnoreCase", "IgnoringCase"} {
		if strings.HasSuffix(source, suffix) {
			source = strings.TrimSuffix(source, suffix)
			ignoreCase = true
			break
		}
	}
	part := &Part{Property: source, Type: SimpleProperty, IgnoreCase: ignoreCase}
	for _, k := range partKeywords {
		for _, kw := range k.keywords {
			if len(source) > len(kw) && strings.HasSuffix(source, kw) {
				part.Property, part.Type = strings.TrimSuffix(source, kw), k.typ
				return part, nil
			}
		}
	}
	if source == "" {
		return nil, fmt.Errorf("empty property")
	}
	return part, nil
}

// splitKeyword splits s on kw where kw is followed by an upper-case letter,
// so Order or Origin stay whole.
func splitKeyword(s, kw string) []string {
	var parts []string
	start := 0
	for i := 1; i+len(kw) < len(s); i++ {
		if s[i:i+len(kw)] == kw && isUpper(s[i+len(kw)]) {
			parts = append(parts, s[start:i])
			start = i + len(kw)
			i = start
		}
	}
	return append(parts, s[start:])
}

func splitOrderBy(predicate string) (criteria, orderBy string) {
	const kw = "OrderBy"
	for i := 0; i+len(kw) < len(predicate); i++ {
		if predicate[i:i+len(kw)] == kw && isUpper(predicate[i+len(kw)]) {
			return predicate[:i], predicate[i+len(kw):]
		}
	}
	return predicate, ""
}

func parseOrderBy(method, source string) (types.Sort, error) {
	var sort types.Sort
	start := 0
	emit := func(end int) error {
		chunk := source[start:end]
		dir := types.ASC
		switch {
		case strings.HasSuffix(chunk, "Desc"):
			chunk, dir = strings.TrimSuffix(chunk, "Desc"), types.DESC
		case strings.HasSuffix(chunk, "Asc"):
			chunk = strings.TrimSuffix(chunk, "Asc")
		}
		if chunk == "" {
			return fmt.Errorf("%w: %s has an empty OrderBy property", ErrInvalidQuery, method)
		}
		sort = append(sort, types.Order{Property: chunk, Direction: dir})
		return nil
	}
	for i := 0; i < len(source); i++ {
		for _, d := range []string{"Asc", "Desc"} {
			end := i + len(d)
			if end < len(source) && source[i:end] == d && isUpper(source[end]) {
				if err := emit(end); err != nil {
					return nil, err
				}
				start = end
			}
		}
	}
	if err := emit(len(source)); err != nil {
		return nil, err
	}
	return sort, nil
}

func isUpper(b byte) bool {
	return unicode.IsUpper(rune(b))
}

// NumArgs is the number of arguments a call must pass.
func (q *DerivedQuery) NumArgs() int {
	n := 0
	for _, group := range q.Criteria {
		for _, p := range group {
			n += p.Type.numArgs()
		}
	}
	return n
}

// resolve binds every property to a column of table, or of a to-one relation
// for nested properties such as TeamName.
func (q *DerivedQuery) resolve(table *schema.Table) error {
	for _, group := range q.Criteria {
		for _, p := range group {
			if err := p.resolve(table); err != nil {
				return fmt.Errorf("%s: %w", q.Method, err)
			}
			if p.relation != "" && !containsString(q.joins, p.relation) {
				q.joins = append(q.joins, p.relation)
			}
		}
	}
	for _, o := range q.Sort {
		if _, ok := fieldByProperty(table, o.Property); !ok {
			return fmt.Errorf("%s: %w: %s", q.Method, ErrUnknownProperty, o.Property)
		}
	}
	if q.Subject == SubjectDelete && len(q.joins) > 0 {
		return fmt.Errorf("%w: %s filters on a relation", ErrInvalidQuery, q.Method)
	}
	return nil
}

func (p *Part) resolve(table *schema.Table) error {
	prop := strings.ReplaceAll(p.Property, "_", "")
	if f, ok := fieldByProperty(table, prop); ok {
		p.column = f.Name
		return nil
	}
	for name, rel := range table.Relations {
		if rel.Type != schema.BelongsToRelation && rel.Type != schema.HasOneRelation {
			continue
		}
		if !strings.HasPrefix(prop, name) {
			continue
		}
		if f, ok := fieldByProperty(rel.JoinTable, strings.TrimPrefix(prop, name)); ok {
			p.alias, p.column, p.relation = rel.Field.Name, f.Name, name
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownProperty, p.Property)
}

// fieldByProperty matches a Go field name (case-insensitive) or a column name.
func fieldByProperty(table *schema.Table, prop string) (*schema.Field, bool) {
	if prop == "" {
		return nil, false
	}
	for _, f := range table.Fields {
		if f.Name == prop || strings.EqualFold(f.GoName, prop) {
			return f, true
		}
	}
	return nil, false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// where renders the criteria into a single WHERE expression for a select
// over the entity table.
func (q *DerivedQuery) where(args []any) (string, []any, error) {
	if len(args) != q.NumArgs() {
		return "", nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidArguments, q.Method, q.NumArgs(), len(args))
	}
	var (
		sb     strings.Builder
		params []any
	)
	next := 0
	for gi, group := range q.Criteria {
		if gi > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("(")
		for pi, p := range group {
			if pi > 0 {
				sb.WriteString(" AND ")
			}
			n := p.Type.numArgs()
			expr, exprArgs, err := p.expr(args[next : next+n])
			if err != nil {
				return "", nil, fmt.Errorf("%s: %w", q.Method, err)
			}
			next += n
			sb.WriteString(expr)
			params = append(params, exprArgs...)
		}
		sb.WriteString(")")
	}
	return sb.String(), params, nil
}

func (p *Part) expr(args []any) (string, []any, error) {
	col, params := "?TableAlias.?", []any{bun.Ident(p.column)}
	if p.alias != "" {
		col, params = "?.?", []any{bun.Ident(p.alias), bun.Ident(p.column)}
	}
	lhs, rhs := col, "?"
	if p.IgnoreCase {
		lhs, rhs = "UPPER("+col+")", "UPPER(?)"
	}
	binary := func(op string, v any) (string, []any, error) {
		return lhs + " " + op + " " + rhs, append(params, v), nil
	}
	switch p.Type {
	case SimpleProperty:
		if args[0] == nil {
			return col + " IS NULL", params, nil
		}
		return binary("=", args[0])
	case NegatingSimpleProperty:
		if args[0] == nil {
			return col + " IS NOT NULL", params, nil
		}
		return binary("<>", args[0])
	case IsNull:
		return col + " IS NULL", params, nil
	case IsNotNull:
		return col + " IS NOT NULL", params, nil
	case True:
		return col + " = ?", append(params, true), nil
	case False:
		return col + " = ?", append(params, false), nil
	case Between:
		return col + " BETWEEN ? AND ?", append(params, args[0], args[1]), nil
	case LessThan, Before:
		return binary("<", args[0])
	case LessThanEqual:
		return binary("<=", args[0])
	case GreaterThan, After:
		return binary(">", args[0])
	case GreaterThanEqual:
		return binary(">=", args[0])
	case Like:
		return binary("LIKE", args[0])
	case NotLike:
		return binary("NOT LIKE", args[0])
	case StartingWith, EndingWith, Containing, NotContaining:
		s, ok := args[0].(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s needs a string", ErrInvalidArguments, p.Property)
		}
		s = escapeLike(s)
		op := "LIKE"
		switch p.Type {
		case StartingWith:
			s += "%"
		case EndingWith:
			s = "%" + s
		case NotContaining:
			s, op = "%"+s+"%", "NOT LIKE"
		default:
			s = "%" + s + "%"
		}
		expr, exprArgs, _ := binary(op, s)
		return expr + " ESCAPE '!'", exprArgs, nil
	case In, NotIn:
		v := reflect.ValueOf(args[0])
		if args[0] == nil || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
			return "", nil, fmt.Errorf("%w: %s needs a slice", ErrInvalidArguments, p.Property)
		}
		op := "IN"
		if p.Type == NotIn {
			op = "NOT IN"
		}
		return col + " " + op + " (?)", append(params, bun.In(args[0])), nil
	}
	return "", nil, fmt.Errorf("%w: unsupported predicate on %s", ErrInvalidQuery, p.Property)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
