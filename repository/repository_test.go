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

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
	"github.com/uptrace/bun"
)

type fixture struct {
	db      *bun.DB
	members *MemberRepository
	teams   *TeamRepository
	queries *database.QueryCounter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.HealthCheckInterval = 0
	cfg.DataMigrateConfig.ForeignKeyFile = ""

	counter := database.NewQueryCounter()
	factory, err := database.Open(context.Background(), cfg, database.WithQueryHook(counter))
	require.NoError(t, err)
	t.Cleanup(func() { _ = factory.Close() })

	members, err := NewMemberRepository(factory.GetDB())
	require.NoError(t, err)
	teams, err := NewTeamRepository(factory.GetDB())
	require.NoError(t, err)
	counter.Reset()
	return &fixture{db: factory.GetDB(), members: members, teams: teams, queries: counter}
}

// session returns a context carrying a fresh session, the test analog of a
// transactional test method.
func (f *fixture) session() (context.Context, *Session) {
	s := NewSession(f.db)
	return WithSession(context.Background(), s), s
}

func (f *fixture) saveMembers(t *testing.T, ctx context.Context, members ...*entity.Member) {
	t.Helper()
	for _, m := range members {
		_, err := f.members.Save(ctx, m)
		require.NoError(t, err)
	}
}

func (f *fixture) saveFiveAged10(t *testing.T, ctx context.Context) {
	t.Helper()
	f.saveMembers(t, ctx,
		entity.NewMemberWithAge("member1", 10),
		entity.NewMemberWithAge("member2", 10),
		entity.NewMemberWithAge("member3", 10),
		entity.NewMemberWithAge("member4", 10),
		entity.NewMemberWithAge("member5", 10),
	)
}
