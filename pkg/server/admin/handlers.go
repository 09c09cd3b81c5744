// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-redfish.
//
// go-redfish is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeremyhahn/go-redfish/pkg/version"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type handler struct {
	source  StatusSource
	started time.Time
}

func setupRoutes(router *gin.Engine, h *handler) {
	router.GET("/health", h.health)
	router.HEAD("/health", h.health)
	router.GET("/metrics", h.metrics)
	router.GET("/version", h.version)
	router.NoRoute(func(c *gin.Context) {
		respondWithError(c, http.StatusNotFound, "not found")
	})
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  version.Get(),
		Sessions: h.source.SessionCount(),
		Uptime:   time.Since(h.started).Truncate(time.Second).String(),
	})
}

func (h *handler) metrics(c *gin.Context) {
	body := make(map[string]any)
	for k, v := range h.source.GetMetrics() {
		body[k] = v
	}
	body["sessions"] = h.source.SessionCount()
	c.JSON(http.StatusOK, body)
}

func (h *handler) version(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetInfo())
}

func respondWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: message, Code: code})
}
