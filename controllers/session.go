package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/middleware"
)

// VerifyAuth returns the identity the auth middleware resolved.
func VerifyAuth(c *gin.Context) {
	id := middleware.Identity(c)
	if id == nil {
		respondError(c, apperr.Unauthorized("Authorization token required"))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, id)
}
