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
	"fmt"

	"github.com/uptrace/bun"
)

// Member is the owning side of the member/team association.
// Team stays nil until it is fetch-joined or loaded on demand.
type Member struct {
	bun.BaseModel `bun:"table:member,alias:m"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Username string `bun:"username,notnull" json:"username"`
	Age      int    `bun:"age,notnull,default:0" json:"age"`
	TeamID   int64  `bun:"team_id,nullzero" json:"teamId,omitempty"`
	Team     *Team  `bun:"rel:belongs-to,join:team_id=id" json:"-"`
	BaseEntity
}

func NewMember(username string) *Member {
	return &Member{Username: username}
}

func NewMemberWithAge(username string, age int) *Member {
	return &Member{Username: username, Age: age}
}

// NewMemberWithTeam links both sides of the association when team is not nil.
func NewMemberWithTeam(username string, age int, team *Team) *Member {
	m := NewMemberWithAge(username, age)
	if team != nil {
		m.ChangeTeam(team)
	}
	return m
}

var _ bun.BeforeAppendModelHook = (*Member)(nil)

// BeforeAppendModel copies the id of a team saved after ChangeTeam into team_id.
func (m *Member) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if m == nil {
		return nil
	}
	if m.Team != nil && m.Team.ID != 0 {
		m.TeamID = m.Team.ID
	}
	return m.BaseEntity.BeforeAppendModel(ctx, query)
}

func (m *Member) GetID() int64 { return m.ID }

// ChangeTeam moves the member to team and keeps Team.Members in step.
// A nil team takes the member out of its current team.
func (m *Member) ChangeTeam(team *Team) {
	if m.Team != nil && m.Team != team {
		m.Team.removeMember(m)
	}
	m.Team = team
	if team == nil {
		m.TeamID = 0
		return
	}
	m.TeamID = team.ID
	if !team.hasMember(m) {
		team.Members = append(team.Members, m)
	}
}

func (m *Member) String() string {
	return fmt.Sprintf("Member(id=%d, username=%s, age=%d)", m.ID, m.Username, m.Age)
}
