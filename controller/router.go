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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/utils"
)

// Routes is implemented by every controller.
type Routes interface {
	RegisterRoutes(r gin.IRouter)
}

type HealthChecker interface {
	GetHealthStatus(ctx context.Context) *database.HealthStatus
}

// HealthController reports database health; unhealthy answers 503.
type HealthController struct {
	checker HealthChecker
}

func NewHealthController(checker HealthChecker) *HealthController {
	return &HealthController{checker: checker}
}

func (hc *HealthController) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		status := hc.checker.GetHealthStatus(c.Request.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
}

// MetricsController serves the collectors of one registry.
type MetricsController struct {
	handler http.Handler
}

func NewMetricsController(g prometheus.Gatherer) *MetricsController {
	return &MetricsController{handler: promhttp.HandlerFor(g, promhttp.HandlerOpts{})}
}

func (mc *MetricsController) RegisterRoutes(r gin.IRouter) {
	r.GET("/metrics", gin.WrapH(mc.handler))
}

// NewRouter builds the engine with recovery, request logging and, when
// metrics is not nil, request metrics in front of every route.
func NewRouter(mode string, logger *utils.Logger, metrics *HTTPMetrics, routes ...Routes) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(logger))
	if metrics != nil {
		engine.Use(metrics.Handler())
	}
	engine.NoRoute(notFound)
	for _, r := range routes {
		r.RegisterRoutes(engine)
	}
	return engine
}
