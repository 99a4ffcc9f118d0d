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
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tomoncle/datajpa/dto"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/repository"
	"github.com/tomoncle/datajpa/types"
	"github.com/tomoncle/datajpa/utils"
)

// MemberRepository is what the member endpoints need from persistence.
type MemberRepository interface {
	memberLoader
	FindAllPage(ctx context.Context, req *types.PageRequest, opts ...repository.QueryOption) (*types.Page[entity.Member], error)
	SaveAll(ctx context.Context, entities ...*entity.Member) ([]*entity.Member, error)
	Count(ctx context.Context) (int, error)
}

// memberListDefault applies when /members has no size or sort parameter.
var memberListDefault = PageableDefault{Size: 5, Sort: types.SortBy(types.ASC, "username")}

type MemberController struct {
	members  MemberRepository
	pageable *PageableResolver
	logger   *utils.Logger
}

func NewMemberController(members MemberRepository, pageable *PageableResolver, logger *utils.Logger) *MemberController {
	if logger == nil {
		logger = utils.NewLogger(LoggerName)
	}
	return &MemberController{members: members, pageable: pageable, logger: logger}
}

func (mc *MemberController) RegisterRoutes(r gin.IRouter) {
	r.GET("/members/:id", mc.handleFindMember())
	r.GET("/members2/:id", ResolveMember(mc.members), mc.handleFindMemberResolved())
	r.GET("/members", mc.handleList())
}

func (mc *MemberController) handleFindMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			abortWithError(c, err)
			return
		}
		m, err := mc.members.FindByID(c.Request.Context(), id, repository.ReadOnly())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.String(http.StatusOK, m.Username)
	}
}

func (mc *MemberController) handleFindMemberResolved() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, MemberFrom(c).Username)
	}
}

func (mc *MemberController) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := mc.pageable.Resolve(c, memberListDefault)
		if err != nil {
			abortWithError(c, err)
			return
		}
		page, err := mc.members.FindAllPage(c.Request.Context(), req, repository.FetchJoin("Team"), repository.ReadOnly())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, types.MapPage(page, dto.NewMemberDto))
	}
}

// Seed creates user0..user{n-1} with age i. It does nothing when n is zero
// or members already exist.
func (mc *MemberController) Seed(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	existing, err := mc.members.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count members: %w", err)
	}
	if existing > 0 {
		mc.logger.WithField("existing", existing).Info("Skipping member seed")
		return nil
	}
	members := make([]*entity.Member, 0, n)
	for i := 0; i < n; i++ {
		members = append(members, entity.NewMemberWithAge(fmt.Sprintf("user%d", i), i))
	}
	if _, err := mc.members.SaveAll(ctx, members...); err != nil {
		return fmt.Errorf("failed to seed members: %w", err)
	}
	mc.logger.WithField("count", n).Info("Seeded members")
	return nil
}
