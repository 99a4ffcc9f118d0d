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
	"github.com/tomoncle/datajpa/dto"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/types"
	"github.com/uptrace/bun"
)

func TestMember(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.session()

	memberA := entity.NewMember("memberA")
	saved, err := f.members.Save(ctx, memberA)
	require.NoError(t, err)

	found, err := f.members.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, memberA.ID, found.ID)
	assert.Equal(t, memberA.Username, found.Username)
	assert.Same(t, memberA, found)
	assert.Zero(t, f.queries.Count("SELECT"))
}

func TestBasicCRUD(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.session()

	member1 := entity.NewMember("member1")
	member2 := entity.NewMember("member2")
	f.saveMembers(t, ctx, member1, member2)

	found1, err := f.members.FindByID(ctx, member1.ID)
	require.NoError(t, err)
	found2, err := f.members.FindByID(ctx, member2.ID)
	require.NoError(t, err)
	assert.Same(t, member1, found1)
	assert.Same(t, member2, found2)

	all, err := f.members.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	count, err := f.members.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, f.members.Delete(ctx, member1))
	require.NoError(t, f.members.Delete(ctx, member2))

	count, err = f.members.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFindByIDNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.members.FindByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := f.members.ExistsByID(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFindByUsernameAndAgeGreaterThan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveMembers(t, ctx, entity.NewMemberWithAge("AAA", 10), entity.NewMemberWithAge("AAA", 20))

	result, err := f.members.FindByUsernameAndAgeGreaterThan(ctx, "AAA", 15)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "AAA", result[0].Username)
	assert.Equal(t, 20, result[0].Age)
}

func TestFindUserBindsByName(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.session()
	m1 := entity.NewMemberWithAge("AAA", 10)
	f.saveMembers(t, ctx, m1, entity.NewMemberWithAge("AAA", 20))

	result, err := f.members.FindUser(ctx, "AAA", 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Same(t, m1, result[0])
}

func TestFindUsernameList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveMembers(t, ctx, entity.NewMemberWithAge("AAA", 10), entity.NewMemberWithAge("BBB", 20))

	names, err := f.members.FindUsernameList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, names)
}

func TestFindMemberDto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teamA := entity.NewTeam("TeamA")
	_, err := f.teams.Save(ctx, teamA)
	require.NoError(t, err)

	m1 := entity.NewMemberWithAge("AAA", 10)
	m1.Team = teamA
	f.saveMembers(t, ctx, m1, entity.NewMemberWithAge("BBB", 20))

	dtos, err := f.members.FindMemberDto(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dto.MemberDto{{ID: m1.ID, Username: "AAA", TeamName: "TeamA"}}, dtos)
}

func TestFindByNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveMembers(t, ctx,
		entity.NewMemberWithAge("AAA", 10),
		entity.NewMemberWithAge("BBB", 20),
		entity.NewMemberWithAge("CCC", 30),
	)

	result, err := f.members.FindByNames(ctx, []string{"AAA", "BBB"})
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestReturnTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveMembers(t, ctx, entity.NewMemberWithAge("AAA", 10), entity.NewMemberWithAge("BBB", 20))

	list, err := f.members.FindListByUsername(ctx, "AAA")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.members.FindListByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	member, err := f.members.FindMemberByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, member)

	member, found, err := f.members.FindOptionalByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, member)

	member, found, err = f.members.FindOptionalByUsername(ctx, "BBB")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 20, member.Age)

	f.saveMembers(t, ctx, entity.NewMemberWithAge("AAA", 30))
	_, _, err = f.members.FindOptionalByUsername(ctx, "AAA")
	assert.ErrorIs(t, err, ErrIncorrectResultSize)
}

func TestPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveFiveAged10(t, ctx)

	req := types.PageRequestOf(0, 3, types.DESC, "username")
	page, err := f.members.FindByAge(ctx, 10, req)
	require.NoError(t, err)

	require.Len(t, page.Content, 3)
	assert.Equal(t, "member5", page.Content[0].Username)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, 0, page.Number)
	assert.Equal(t, 2, page.TotalPages())
	assert.True(t, page.IsFirst())
	assert.True(t, page.HasNext())

	dtos := types.MapPage(page, dto.NewMemberDto)
	assert.Equal(t, "member5", dtos.Content[0].Username)
	assert.Equal(t, int64(5), dtos.TotalElements)

	last, err := f.members.FindByAge(ctx, 10, req.Next())
	require.NoError(t, err)
	assert.Len(t, last.Content, 2)
	assert.Equal(t, int64(5), last.TotalElements)
	assert.True(t, last.IsLast())
}

func TestPagingSkipsCountWhenFirstPageIsPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveFiveAged10(t, ctx)
	f.queries.Reset()

	page, err := f.members.FindByAge(ctx, 10, types.PageRequestOf(0, 10, types.ASC, "username"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, 1, f.queries.Count("SELECT"))
}

func TestPagingSeparateCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveFiveAged10(t, ctx)

	page, err := f.members.FindSeparateCountByAge(ctx, 10, types.PageRequestOf(0, 3, types.DESC, "username"))
	require.NoError(t, err)
	assert.Len(t, page.Content, 3)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, 0, page.Number)
	assert.Equal(t, 2, page.TotalPages())
	assert.True(t, page.IsFirst())
	assert.True(t, page.HasNext())
}

func TestPagingSlice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveFiveAged10(t, ctx)
	f.queries.Reset()

	slice, err := f.members.FindSliceByAge(ctx, 10, types.PageRequestOf(0, 3, types.DESC, "username"))
	require.NoError(t, err)
	assert.Len(t, slice.Content, 3)
	assert.Equal(t, 0, slice.Number)
	assert.True(t, slice.IsFirst())
	assert.True(t, slice.HasNext())
	assert.Equal(t, 1, f.queries.Count("SELECT"))

	rest, err := f.members.FindSliceByAge(ctx, 10, types.PageRequestOf(1, 3, types.DESC, "username"))
	require.NoError(t, err)
	assert.Len(t, rest.Content, 2)
	assert.False(t, rest.HasNext())
}

func TestPagingList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveFiveAged10(t, ctx)

	list, err := f.members.FindListByAge(ctx, 10, types.PageRequestOf(0, 3, types.DESC, "username"))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"member5", "member4", "member3"},
		[]string{list[0].Username, list[1].Username, list[2].Username})
}

func TestPagingUnknownSortProperty(t *testing.T) {
	f := newFixture(t)
	_, err := f.members.FindAllPage(context.Background(), types.PageRequestOf(0, 3, types.ASC, "nickname"))
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestBulkUpdate(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	f.saveMembers(t, ctx,
		entity.NewMemberWithAge("member1", 10),
		entity.NewMemberWithAge("member2", 19),
		entity.NewMemberWithAge("member3", 20),
		entity.NewMemberWithAge("member4", 21),
		entity.NewMemberWithAge("member5", 40),
	)
	require.Equal(t, 5, s.Len())

	count, err := f.members.BulkAgePlus(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Zero(t, s.Len())

	result, err := f.members.FindByUsername(ctx, "member5")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 41, result[0].Age)
}

func saveTwoTeams(t *testing.T, f *fixture, ctx context.Context) {
	t.Helper()
	teamA := entity.NewTeam("teamA")
	teamB := entity.NewTeam("teamB")
	_, err := f.teams.SaveAll(ctx, teamA, teamB)
	require.NoError(t, err)
	f.saveMembers(t, ctx,
		entity.NewMemberWithTeam("member1", 10, teamA),
		entity.NewMemberWithTeam("member2", 10, teamB),
	)
}

func TestFindMemberLazy(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	saveTwoTeams(t, f, ctx)
	s.Clear()
	f.queries.Reset()

	members, err := f.members.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.Nil(t, m.Team)
		require.NoError(t, f.members.LoadTeam(ctx, m))
	}
	assert.Equal(t, "teamA", members[0].Team.Name)
	assert.Equal(t, "teamB", members[1].Team.Name)
	assert.Equal(t, 1+len(members), f.queries.Count("SELECT"))

	f.queries.Reset()
	require.NoError(t, f.members.LoadTeam(ctx, members[0]))
	assert.Zero(t, f.queries.Total())
}

func TestFindMemberFetchJoin(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	saveTwoTeams(t, f, ctx)
	s.Clear()
	f.queries.Reset()

	members, err := f.members.FindMemberFetchJoin(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "teamA", members[0].Team.Name)
	assert.Equal(t, "teamB", members[1].Team.Name)
	assert.Equal(t, 1, f.queries.Count("SELECT"))

	withTeam, err := f.members.FindAllWithTeam(ctx)
	require.NoError(t, err)
	assert.Len(t, withTeam, 2)

	graph, err := f.members.FindEntityGraphByUsername(ctx, "member2")
	require.NoError(t, err)
	require.Len(t, graph, 1)
	assert.Equal(t, "teamB", graph[0].Team.Name)
}

func TestFindByTeamName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	saveTwoTeams(t, f, ctx)

	result, err := f.members.FindByTeamName(ctx, "teamB")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "member2", result[0].Username)
}

func TestQueryHintBefore(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	member1, err := f.members.Save(ctx, entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)
	s.Clear()

	member, err := f.members.FindByID(ctx, member1.ID)
	require.NoError(t, err)
	member.Username = "member2"
	assert.True(t, s.IsDirty(member))

	f.queries.Reset()
	n, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.queries.Count("UPDATE"))

	s.Clear()
	reloaded, err := f.members.FindByID(ctx, member1.ID)
	require.NoError(t, err)
	assert.Equal(t, "member2", reloaded.Username)
}

func TestQueryHintReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	_, err := f.members.Save(ctx, entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)
	s.Clear()

	member, err := f.members.FindReadOnlyByUsername(ctx, "member1")
	require.NoError(t, err)
	require.NotNil(t, member)
	member.Username = "member2"
	assert.False(t, s.Contains(member))

	f.queries.Reset()
	n, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.queries.Count("UPDATE"))
}

func TestLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveMembers(t, ctx, entity.NewMemberWithAge("member1", 10))

	_, err := f.members.FindLockByUsername(ctx, "member1")
	assert.ErrorIs(t, err, ErrTransactionRequired)

	err = f.members.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := f.members.FindLockByUsername(ctx, "member1")
		if err != nil {
			return err
		}
		assert.Len(t, locked, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestCustomAndQueryRepositories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveFiveAged10(t, ctx)

	custom, err := f.members.FindMemberCustom(ctx)
	require.NoError(t, err)
	assert.Len(t, custom, 5)

	all, err := NewMemberQueryRepository(f.db).FindAllMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestAuditing(t *testing.T) {
	f := newFixture(t)
	ctx, s := f.session()
	ctx = entity.WithAuditor(ctx, "creator")

	member, err := f.members.Save(ctx, entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)
	assert.False(t, member.CreatedDate.IsZero())
	assert.Equal(t, "creator", member.CreatedBy)
	assert.Equal(t, "creator", member.LastModifiedBy)
	created := member.CreatedDate

	time.Sleep(5 * time.Millisecond)
	member.Username = "member2"
	_, err = s.Flush(entity.WithAuditor(ctx, "editor"))
	require.NoError(t, err)

	s.Clear()
	reloaded, err := f.members.FindByID(ctx, member.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, created, reloaded.CreatedDate, time.Millisecond)
	assert.True(t, reloaded.UpdatedDate.After(created))
	assert.Equal(t, "creator", reloaded.CreatedBy)
	assert.Equal(t, "editor", reloaded.LastModifiedBy)
}

func TestSaveMergesDetachedEntity(t *testing.T) {
	f := newFixture(t)
	ctx := entity.WithAuditor(context.Background(), "creator")
	member, err := f.members.Save(ctx, entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	detached := &entity.Member{ID: member.ID, Username: "renamed", Age: 11}
	merged, err := f.members.Save(entity.WithAuditor(context.Background(), "editor"), detached)
	require.NoError(t, err)
	assert.Equal(t, "creator", merged.CreatedBy, "creation audit comes from the stored row")
	assert.Equal(t, "editor", merged.LastModifiedBy)

	reloaded, err := f.members.FindByID(context.Background(), member.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", reloaded.Username)
	assert.Equal(t, 11, reloaded.Age)
	assert.Equal(t, "creator", reloaded.CreatedBy)
	assert.Equal(t, "editor", reloaded.LastModifiedBy)
	assert.WithinDuration(t, member.CreatedDate, reloaded.CreatedDate, time.Millisecond)
	assert.True(t, merged.CreatedDate.Equal(reloaded.CreatedDate))

	count, err := f.members.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDerivedCountExistsDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveFiveAged10(t, ctx)
	f.saveMembers(t, ctx, entity.NewMemberWithAge("member1", 20))

	count, err := f.members.CountByAge(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	exists, err := f.members.ExistsByUsername(ctx, "member3")
	require.NoError(t, err)
	assert.True(t, exists)

	deleted, err := f.members.DeleteByUsername(ctx, "member1")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	exists, err = f.members.ExistsByUsername(ctx, "member1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveFiveAged10(t, ctx)

	n, err := f.members.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	f.saveFiveAged10(t, ctx)
	affected, err := f.members.DeleteAllInBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), affected)
}

func TestFilterQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveFiveAged10(t, ctx)
	f.saveMembers(t, ctx, entity.NewMemberWithAge("member6", 30))

	list, err := f.members.List(ctx, types.NewQueryFilter("age > ?", 20))
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.members.Query(ctx, "username IN (?)", bun.In([]string{"member1", "member6"}))
	require.NoError(t, err)
	assert.Len(t, list, 2)

	page, err := f.members.Page(ctx, types.NewPageRequestWithFilter(0, 2, types.NewQueryFilter("age = ?", 10), types.SortBy(types.ASC, "id")))
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Len(t, page.Content, 2)
}

func TestTransactionVariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, err := f.db.BeginTx(ctx, nil)
	require.NoError(t, err)

	member, err := f.members.SaveWithTx(ctx, &tx, entity.NewMemberWithAge("member1", 10))
	require.NoError(t, err)
	member.Age = 11
	require.NoError(t, f.members.UpdateWithTx(ctx, &tx, member))
	require.NoError(t, tx.Commit())

	reloaded, err := f.members.FindByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, reloaded.Age)

	tx, err = f.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, f.members.DeleteWithTx(ctx, &tx, member.ID))
	require.NoError(t, tx.Rollback())

	exists, err := f.members.ExistsByID(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTeamRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	saveTwoTeams(t, f, ctx)

	teams, err := f.teams.FindByName(ctx, "teamA")
	require.NoError(t, err)
	require.Len(t, teams, 1)

	team, err := f.teams.FindWithMembers(ctx, teams[0].ID)
	require.NoError(t, err)
	require.Len(t, team.Members, 1)
	assert.Equal(t, "member1", team.Members[0].Username)
}
