// Package handlers exposes the services as JSON endpoints. Handlers only
// parse input, call one service method and render the result; errors go
// through apierr so every endpoint shares the same envelope.
package handlers

import (
	"net/http"

	"zynexhub/internal/apierr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// bindJSON decodes the request body into dst and answers 400 when it can't.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apierr.Abort(c, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return false
	}
	return true
}

// uuidParam reads a path parameter that must be a uuid.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		apierr.Abort(c, http.StatusBadRequest, "invalid_argument", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
