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
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/datajpa/config"
	"github.com/tomoncle/datajpa/repository"
	"github.com/tomoncle/datajpa/types"
)

func testContext(target string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c
}

func TestPageableResolve(t *testing.T) {
	resolver := NewPageableResolver(config.PageableConfig{DefaultPageSize: 20, MaxPageSize: 100})
	def := PageableDefault{Sort: types.SortBy(types.ASC, "username")}

	req, err := resolver.Resolve(testContext("/members"), def)
	require.NoError(t, err)
	assert.Equal(t, 0, req.GetPage())
	assert.Equal(t, 20, req.GetPageSize(), "global default when the endpoint sets none")
	assert.Equal(t, def.Sort, req.GetSort())

	req, err = resolver.Resolve(testContext("/members?page=3&size=500&sort=age,username,desc"), def)
	require.NoError(t, err)
	assert.Equal(t, 3, req.GetPage())
	assert.Equal(t, 100, req.GetPageSize())
	assert.Equal(t, types.Sort{types.Desc("age"), types.Desc("username")}, req.GetSort())

	req, err = resolver.Resolve(testContext("/members?size=0&sort="), PageableDefault{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, req.GetPageSize())
	assert.False(t, req.GetSort().IsSorted())

	_, err = resolver.Resolve(testContext("/members?sort=asc"), def)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestPageableRejectsOverflowingPage(t *testing.T) {
	resolver := NewPageableResolver(config.PageableConfig{DefaultPageSize: 20, MaxPageSize: 100})

	_, err := resolver.Resolve(testContext("/members?page=4611686018427387904&size=4"), PageableDefault{})
	assert.ErrorIs(t, err, ErrBadRequest)

	req, err := resolver.Resolve(testContext(fmt.Sprintf("/members?page=%d&size=4", types.MaxPage(4))), PageableDefault{})
	require.NoError(t, err)
	assert.Equal(t, types.MaxPage(4)*4, req.GetOffset())
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: Member id=1: %w", repository.ErrNotFound, sql.ErrNoRows), http.StatusNotFound},
		{sql.ErrNoRows, http.StatusNotFound},
		{fmt.Errorf("%w: bad id", ErrBadRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: Member has no property x", repository.ErrUnknownProperty), http.StatusBadRequest},
		{repository.ErrInvalidArguments, http.StatusBadRequest},
		{errors.New("UNIQUE constraint failed: member.id"), http.StatusConflict},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}
