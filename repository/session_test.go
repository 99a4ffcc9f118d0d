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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/datajpa/entity"
)

func TestSessionIdentityMap(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	saved, err := f.members.Save(ctx, entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)
	assert.True(t, s.Contains(saved))

	all, err := f.members.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Same(t, saved, all[0])

	byName, err := f.members.FindByUsername(ctx, "member1")
	require.NoError(t, err)
	assert.Same(t, saved, byName[0])

	outside, err := f.members.FindByID(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.NotSame(t, saved, outside)
	assert.False(t, s.Contains(outside))
}

func TestSessionDetachAndClear(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	m1, err := f.members.Save(ctx, entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)
	m2, err := f.members.Save(ctx, entity.NewMemberWithAge("member2", 20))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	s.Detach(m1)
	assert.False(t, s.Contains(m1))
	assert.True(t, s.Contains(m2))

	m1.Age = 99
	assert.False(t, s.IsDirty(m1))

	s.Clear()
	assert.Zero(t, s.Len())
	n, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionFlushWritesOnlyDirtyEntities(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	m1, err := f.members.Save(ctx, entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)
	_, err = f.members.Save(ctx, entity.NewMemberWithAge("member2", 20))
	require.NoError(t, err)

	m1.Age = 11
	f.queries.Reset()
	n, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.queries.Count("UPDATE"))
	assert.False(t, s.IsDirty(m1))

	n, err = s.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionFlushJoinsTransaction(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	m1, err := f.members.Save(ctx, entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)

	err = f.members.RunInTx(ctx, func(ctx context.Context) error {
		m1.Age = 30
		if _, err := s.Flush(ctx); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	reloaded, err := f.members.FindByID(context.Background(), m1.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.Age)
}

func TestDeleteByIDDetaches(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	m1, err := f.members.Save(ctx, entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)

	require.NoError(t, f.members.DeleteByID(ctx, m1.ID))
	assert.False(t, s.Contains(m1))
	require.NoError(t, f.members.DeleteByID(ctx, m1.ID))
}

func TestSaveDetachedCopiesIntoManagedInstance(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	managed, err := f.members.Save(entity.WithAuditor(ctx, "creator"), entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)
	created := managed.CreatedDate

	detached := &entity.Member{ID: managed.ID, Username: "renamed", Age: 11}
	got, err := f.members.Save(entity.WithAuditor(ctx, "editor"), detached)
	require.NoError(t, err)
	assert.Same(t, managed, got)
	assert.Equal(t, "renamed", managed.Username)
	assert.Equal(t, 11, managed.Age)
	assert.Equal(t, "creator", managed.CreatedBy)
	assert.Equal(t, "editor", managed.LastModifiedBy)
	assert.WithinDuration(t, created, managed.CreatedDate, time.Millisecond)
	assert.False(t, s.Contains(detached))
	assert.False(t, s.IsDirty(managed))

	n, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
