// Package controllers maps HTTP requests onto the service packages.
package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/middleware"
)

const dateLayout = "2006-01-02"

// StatusOf maps an error onto its HTTP status.
func StatusOf(err error) int {
	if errors.Is(err, apperr.ErrInsufficientStock) || errors.Is(err, apperr.ErrNoInventory) {
		return http.StatusBadRequest
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindPaymentRequired:
		return http.StatusPaymentRequired
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	if apperr.IsRetryable(err) {
		c.Header("Retry-After", "1")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusOf(err), gin.H{"error": apperr.Message(err), "code": apperr.KindOf(err)})
}

func badRequest(c *gin.Context, message string) {
	respondError(c, apperr.Validation("%s", message))
}

// businessID is set by the auth middleware on every protected route.
func businessID(c *gin.Context) uint {
	return c.GetUint(middleware.KeyBusinessID)
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// parseDate reads a YYYY-MM-DD value as a UTC calendar day.
func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, raw, time.UTC)
}

func optionalDate(raw *string, field string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := parseDate(*raw)
	if err != nil {
		return nil, apperr.Validation("%s must be a YYYY-MM-DD date", field)
	}
	return &d, nil
}
