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
	"reflect"
	"sort"
	"sync"
)

// SQLModel is an entity whose table the migration manager creates. Instance
// returns a nil struct pointer of the entity; tables are created in
// ascending Priority, so referenced tables need the lower value.
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

type modelAdapter struct {
	instance interface{}
	priority int
}

// NewModelAdapter wraps a struct instance and priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int) SQLModel {
	return modelAdapter{instance: instance, priority: priority}
}

func (a modelAdapter) Instance() interface{} { return a.instance }
func (a modelAdapter) Priority() int { return a.priority }

type registeredModel struct {
	model SQLModel
	seq   int
}

var registry = struct {
	sync.Mutex
	byType map[reflect.Type]registeredModel
}{byType: make(map[reflect.Type]registeredModel)}

// RegisteredModel adds a model to the registry. A second model of the same
// Go type is ignored.
func RegisteredModel(model SQLModel) {
	if model == nil || model.Instance() == nil {
		return
	}
	typ := reflect.TypeOf(model.Instance())
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.byType[typ]; !ok {
		registry.byType[typ] = registeredModel{model: model, seq: len(registry.byType)}
	}
}

// GetRegisteredModels returns the registered models, referenced tables first.
// Models of equal priority keep their registration order.
func GetRegisteredModels() []SQLModel {
	registry.Lock()
	entries := make([]registeredModel, 0, len(registry.byType))
	for _, e := range registry.byType {
		entries = append(entries, e)
	}
	registry.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if pi, pj := entries[i].model.Priority(), entries[j].model.Priority(); pi != pj {
			return pi < pj
		}
		return entries[i].seq < entries[j].seq
	})
	result := make([]SQLModel, len(entries))
	for i, e := range entries {
		result[i] = e.model
	}
	return result
}

// RegisteredModelInstances is what Connect registers with bun and
// createBaseTables creates, in that order.
func RegisteredModelInstances() []interface{} {
	registered := GetRegisteredModels()
	instances := make([]interface{}, len(registered))
	for i, m := range registered {
		instances[i] = m.Instance()
	}
	return instances
}
