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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/repository"
)

type TeamRepository interface {
	FindByID(ctx context.Context, id int64, opts ...repository.QueryOption) (*entity.Team, error)
}

type TeamController struct {
	teams TeamRepository
}

func NewTeamController(teams TeamRepository) *TeamController {
	return &TeamController{teams: teams}
}

func (tc *TeamController) RegisterRoutes(r gin.IRouter) {
	r.GET("/teams/:id", tc.handleFindTeam())
}

func (tc *TeamController) handleFindTeam() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		t, err := tc.teams.FindByID(c.Request.Context(), id, repository.ReadOnly())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.String(http.StatusOK, t.Name)
	}
}
