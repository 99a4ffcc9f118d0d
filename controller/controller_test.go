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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/datajpa/config"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	router  *gin.Engine
	members *repository.MemberRepository
	teams   *repository.TeamRepository
	memberC *MemberController
}

func newServer(t *testing.T, pageable config.PageableConfig) *server {
	t.Helper()
	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.HealthCheckInterval = 0
	cfg.DataMigrateConfig.ForeignKeyFile = ""
	factory, err := database.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = factory.Close() })

	members, err := repository.NewMemberRepository(factory.GetDB())
	require.NoError(t, err)
	teams, err := repository.NewTeamRepository(factory.GetDB())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	mc := NewMemberController(members, NewPageableResolver(pageable), nil)
	router := NewRouter(gin.TestMode, nil, metrics,
		mc,
		NewTeamController(teams),
		NewHealthController(factory),
		NewMetricsController(reg),
	)
	return &server{router: router, members: members, teams: teams, memberC: mc}
}

func defaultPageable() config.PageableConfig {
	return config.Default().Web.Pageable
}

func (s *server) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	s.router.ServeHTTP(w, req)
	return w
}

type memberDto struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	TeamName string `json:"teamName"`
}

type pageBody struct {
	Content          []memberDto `json:"content"`
	Number           int         `json:"number"`
	Size             int         `json:"size"`
	TotalElements    int64       `json:"totalElements"`
	TotalPages       int         `json:"totalPages"`
	NumberOfElements int         `json:"numberOfElements"`
	First            bool        `json:"first"`
	Last             bool        `json:"last"`
	Sort             []struct {
		Property  string `json:"property"`
		Direction string `json:"direction"`
	} `json:"sort"`
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) pageBody {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body pageBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func usernames(content []memberDto) []string {
	names := make([]string, 0, len(content))
	for _, m := range content {
		names = append(names, m.Username)
	}
	return names
}

func TestFindMember(t *testing.T) {
	s := newServer(t, defaultPageable())
	require.NoError(t, s.memberC.Seed(context.Background(), 3))

	w := s.get(t, "/members/1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user0", w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))

	w = s.get(t, "/members2/2")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user1", w.Body.String())
}

func TestFindMemberErrors(t *testing.T) {
	s := newServer(t, defaultPageable())

	for _, target := range []string{"/members/abc", "/members2/abc"} {
		w := s.get(t, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		body := decodeError(t, w)
		assert.Equal(t, http.StatusBadRequest, body.Status)
		assert.Equal(t, "Bad Request", body.Error)
		assert.Equal(t, target, body.Path)
		assert.False(t, body.Timestamp.IsZero())
	}

	for _, target := range []string{"/members/99", "/members2/99", "/teams/99"} {
		w := s.get(t, target)
		assert.Equal(t, http.StatusNotFound, w.Code, target)
		assert.Equal(t, http.StatusNotFound, decodeError(t, w).Status)
	}

	w := s.get(t, "/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "/nowhere", decodeError(t, w).Path)
}

func TestListMembersDefaults(t *testing.T) {
	s := newServer(t, defaultPageable())
	require.NoError(t, s.memberC.Seed(context.Background(), 10))

	body := decodePage(t, s.get(t, "/members"))
	assert.Equal(t, []string{"user0", "user1", "user2", "user3", "user4"}, usernames(body.Content))
	assert.Equal(t, 0, body.Number)
	assert.Equal(t, 5, body.Size)
	assert.Equal(t, int64(10), body.TotalElements)
	assert.Equal(t, 2, body.TotalPages)
	assert.Equal(t, 5, body.NumberOfElements)
	assert.True(t, body.First)
	assert.False(t, body.Last)
	require.Len(t, body.Sort, 1)
	assert.Equal(t, "username", body.Sort[0].Property)
	assert.Equal(t, "ASC", body.Sort[0].Direction)
}

func TestListMembersParameters(t *testing.T) {
	s := newServer(t, defaultPageable())
	require.NoError(t, s.memberC.Seed(context.Background(), 10))

	body := decodePage(t, s.get(t, "/members?page=1&size=3&sort=age,desc"))
	assert.Equal(t, []string{"user6", "user5", "user4"}, usernames(body.Content))
	assert.Equal(t, 1, body.Number)
	assert.Equal(t, 4, body.TotalPages)

	body = decodePage(t, s.get(t, "/members?size=5000"))
	assert.Equal(t, 2000, body.Size, "size is clamped to the maximum")
	assert.Len(t, body.Content, 10)

	body = decodePage(t, s.get(t, "/members?size=abc&page=-2"))
	assert.Equal(t, 5, body.Size)
	assert.Equal(t, 0, body.Number)

	body = decodePage(t, s.get(t, "/members?sort=age,desc&sort=username&size=2"))
	assert.Equal(t, []string{"user9", "user8"}, usernames(body.Content))
	assert.Len(t, body.Sort, 2)

	w := s.get(t, "/members?sort=unknown")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "unknown")

	w = s.get(t, "/members?sort=desc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.get(t, "/members?page=4611686018427387904&size=4&sort=id")
	assert.Equal(t, http.StatusBadRequest, w.Code, "the offset would wrap around")
}

func TestListMembersOneIndexed(t *testing.T) {
	pageable := defaultPageable()
	pageable.OneIndexedParameters = true
	s := newServer(t, pageable)
	require.NoError(t, s.memberC.Seed(context.Background(), 4))

	body := decodePage(t, s.get(t, "/members?page=1&size=2"))
	assert.Equal(t, 0, body.Number)
	assert.Equal(t, []string{"user0", "user1"}, usernames(body.Content))

	body = decodePage(t, s.get(t, "/members?page=2&size=2"))
	assert.Equal(t, []string{"user2", "user3"}, usernames(body.Content))
}

func TestListMembersTeamName(t *testing.T) {
	s := newServer(t, defaultPageable())
	ctx := context.Background()

	team, err := s.teams.Save(ctx, entity.NewTeam("teamA"))
	require.NoError(t, err)
	_, err = s.members.SaveAll(ctx,
		entity.NewMemberWithTeam("member1", 10, team),
		entity.NewMemberWithAge("member2", 20),
	)
	require.NoError(t, err)

	body := decodePage(t, s.get(t, "/members"))
	require.Len(t, body.Content, 2)
	assert.Equal(t, "teamA", body.Content[0].TeamName)
	assert.Empty(t, body.Content[1].TeamName)

	w := s.get(t, "/teams/1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teamA", w.Body.String())
}

func TestSeed(t *testing.T) {
	s := newServer(t, defaultPageable())
	ctx := context.Background()

	require.NoError(t, s.memberC.Seed(ctx, 0))
	count, err := s.members.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, s.memberC.Seed(ctx, 5))
	require.NoError(t, s.memberC.Seed(ctx, 5))
	count, err = s.members.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count, "an existing table is not seeded twice")

	m, err := s.members.FindByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "user4", m.Username)
	assert.Equal(t, 4, m.Age)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, defaultPageable())

	w := s.get(t, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	var health database.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.True(t, health.Healthy)

	s.get(t, "/members/abc")
	w = s.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",route="/members/:id",status="400"} 1`)
}
