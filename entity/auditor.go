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

package entity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// AuditorAware resolves the name recorded in created_by/last_modified_by.
type AuditorAware func(ctx context.Context) string

type auditorKey struct{}

var (
	auditorMu       sync.RWMutex
	auditorProvider AuditorAware = RandomAuditor
)

// RandomAuditor returns a fresh UUID on every call.
func RandomAuditor(context.Context) string {
	return uuid.NewString()
}

// SetAuditorAware replaces the process-wide provider; nil restores RandomAuditor.
func SetAuditorAware(provider AuditorAware) {
	auditorMu.Lock()
	defer auditorMu.Unlock()
	if provider == nil {
		provider = RandomAuditor
	}
	auditorProvider = provider
}

// WithAuditor pins the auditor for every write made with the returned context.
func WithAuditor(ctx context.Context, auditor string) context.Context {
	return context.WithValue(ctx, auditorKey{}, auditor)
}

// CurrentAuditor prefers the context auditor over the provider.
func CurrentAuditor(ctx context.Context) string {
	if ctx != nil {
		if auditor, ok := ctx.Value(auditorKey{}).(string); ok && auditor != "" {
			return auditor
		}
	}
	auditorMu.RLock()
	provider := auditorProvider
	auditorMu.RUnlock()
	return provider(ctx)
}
