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
	"fmt"
	"reflect"
	"sync"

	"github.com/tomoncle/datajpa/database"
	"github.com/uptrace/bun"
)

// Identifiable is implemented by every entity a Session can manage.
type Identifiable interface {
	GetID() int64
}

type immutableColumns interface {
	ImmutableColumns() []string
}

type entityKey struct {
	typ reflect.Type
	id  int64
}

type managedEntity struct {
	entity   any
	snapshot reflect.Value
}

// Session is a unit of work over entities read or saved with a context
// carrying it. It keeps one instance per (type, id) and writes back the
// changed ones on Flush.
type Session struct {
	db *bun.DB

	mu      sync.Mutex
	managed map[entityKey]*managedEntity
	order   []entityKey
}

func NewSession(db *bun.DB) *Session {
	return &Session{db: db, managed: make(map[entityKey]*managedEntity)}
}

func keyOf(entity any) (entityKey, bool) {
	ident, ok := entity.(Identifiable)
	if !ok {
		return entityKey{}, false
	}
	if v := reflect.ValueOf(entity); v.Kind() != reflect.Ptr || v.IsNil() || ident.GetID() == 0 {
		return entityKey{}, false
	}
	return entityKey{typ: reflect.TypeOf(entity), id: ident.GetID()}, true
}

func snapshotOf(entity any) reflect.Value {
	v := reflect.ValueOf(entity).Elem()
	snap := reflect.New(v.Type()).Elem()
	snap.Set(v)
	return snap
}

// Attach makes entity managed and returns the managed instance. When an
// entity with the same id is already managed that instance wins and the
// argument is discarded.
func (s *Session) Attach(entity any) any {
	key, ok := keyOf(entity)
	if !ok {
		return entity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.managed[key]; ok {
		return m.entity
	}
	s.managed[key] = &managedEntity{entity: entity, snapshot: snapshotOf(entity)}
	s.order = append(s.order, key)
	return entity
}

// merge makes entity's state the managed state. When another instance with
// the same id is managed, entity is copied into it and that instance is
// returned; either way the snapshot is reset, as the state was just written.
func (s *Session) merge(entity any) any {
	key, ok := keyOf(entity)
	if !ok {
		return entity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.managed[key]
	if !ok {
		s.managed[key] = &managedEntity{entity: entity, snapshot: snapshotOf(entity)}
		s.order = append(s.order, key)
		return entity
	}
	if m.entity != entity {
		reflect.ValueOf(m.entity).Elem().Set(reflect.ValueOf(entity).Elem())
	}
	m.snapshot = snapshotOf(m.entity)
	return m.entity
}

// Lookup returns the managed entity of type typ (a struct pointer type) with id.
func (s *Session) Lookup(typ reflect.Type, id int64) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.managed[entityKey{typ: typ, id: id}]
	if !ok {
		return nil, false
	}
	return m.entity, true
}

func (s *Session) Contains(entity any) bool {
	key, ok := keyOf(entity)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.managed[key]
	return ok && m.entity == entity
}

func (s *Session) Detach(entity any) {
	key, ok := keyOf(entity)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.managed[key]; !ok {
		return
	}
	delete(s.managed, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear detaches every entity.
func (s *Session) Clear() {
	s.mu.Lock()
	s.managed = make(map[entityKey]*managedEntity)
	s.order = nil
	s.mu.Unlock()
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.managed)
}

// IsDirty reports whether a managed entity's columns differ from its snapshot.
func (s *Session) IsDirty(entity any) bool {
	key, ok := keyOf(entity)
	if !ok {
		return false
	}
	s.mu.Lock()
	m, ok := s.managed[key]
	s.mu.Unlock()
	return ok && s.dirty(m)
}

func (s *Session) dirty(m *managedEntity) bool {
	cur := reflect.ValueOf(m.entity).Elem()
	table := s.db.Table(cur.Type())
	for _, f := range table.DataFields {
		a := cur.FieldByIndex(f.Index).Interface()
		b := m.snapshot.FieldByIndex(f.Index).Interface()
		if !reflect.DeepEqual(a, b) {
			return true
		}
	}
	return false
}

// Flush writes every dirty entity with an UPDATE by primary key and returns
// how many were written. Immutable audit columns are left out of the SET list.
func (s *Session) Flush(ctx context.Context) (int, error) {
	s.mu.Lock()
	var pending []*managedEntity
	for _, key := range s.order {
		if m := s.managed[key]; s.dirty(m) {
			pending = append(pending, m)
		}
	}
	s.mu.Unlock()

	db := conn(ctx, s.db)
	for i, m := range pending {
		q := db.NewUpdate().Model(m.entity).WherePK()
		if ic, ok := m.entity.(immutableColumns); ok {
			q = q.ExcludeColumn(ic.ImmutableColumns()...)
		}
		if _, err := q.Exec(ctx); err != nil {
			return i, fmt.Errorf("failed to flush %T: %w", m.entity, err)
		}
		s.mu.Lock()
		m.snapshot = snapshotOf(m.entity)
		s.mu.Unlock()
	}
	if len(pending) > 0 {
		database.GetLogger().Debug("Session flushed", "updated", len(pending))
	}
	return len(pending), nil
}
