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
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/repository"
)

// ErrBadRequest marks request parameters that cannot be converted.
var ErrBadRequest = errors.New("bad request")

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrUnknownProperty),
		errors.Is(err, repository.ErrInvalidArguments):
		return http.StatusBadRequest
	}
	if is, kind := database.IsSqlError(err); is {
		switch kind {
		case database.NoRowsErr:
			return http.StatusNotFound
		case database.DuplicateKeyErr:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// abortWithError records err on the context and writes the error body.
// Server errors keep their detail out of the response.
func abortWithError(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, newErrorResponse(c, status, message))
}

func newErrorResponse(c *gin.Context, status int, message string) ErrorResponse {
	return ErrorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      c.Request.URL.Path,
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, newErrorResponse(c, http.StatusNotFound, "No handler found for "+c.Request.Method+" "+c.Request.URL.Path))
}

func pathID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to convert %s %q to int64", ErrBadRequest, name, raw)
	}
	return id, nil
}
