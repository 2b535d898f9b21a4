package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"kol-campaign-api-server/internal/api/middleware"
	"kol-campaign-api-server/internal/service"
	"kol-campaign-api-server/internal/store"
	"kol-campaign-api-server/internal/validation"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListResponse wraps one page of results.
type ListResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
}

func list[T any](items []T, total int64, p pageParams) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: total, Page: p.page, Limit: p.limit}
}

type pageParams struct {
	page  int64
	limit int64
}

func (p pageParams) store() store.Page {
	return store.Page{Limit: p.limit, Skip: (p.page - 1) * p.limit}
}

// paging reads ?page= (1-based) and ?limit=, clamping both to sane values.
func paging(c *gin.Context) pageParams {
	p := pageParams{page: 1, limit: defaultPageSize}
	if v, err := strconv.ParseInt(c.Query("page"), 10, 64); err == nil && v > 0 {
		p.page = v
	}
	if v, err := strconv.ParseInt(c.Query("limit"), 10, 64); err == nil && v > 0 {
		p.limit = min(v, maxPageSize)
	}
	return p
}

// bindJSON decodes the body and answers 400 itself when that fails.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if details := validation.Describe(err); details != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": details})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return false
	}
	return true
}

// pathID parses the named path parameter as an ObjectID.
func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return primitive.NilObjectID, false
	}
	return id, true
}

// queryID parses an optional ObjectID query parameter. ok is false after a 400 was sent.
func queryID(c *gin.Context, name string) (id *primitive.ObjectID, ok bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return nil, false
	}
	return &parsed, true
}

func currentActor(c *gin.Context) service.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}

// respondError maps service and store errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	var limited *service.RateLimitError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"details": []validation.FieldError{{Field: verr.Field, Message: verr.Message}},
		})
	case validation.Describe(err) != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": validation.Describe(err)})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "Already exists"})
	case errors.Is(err, service.ErrGone):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.As(err, &limited):
		c.Header("Retry-After", limited.RetryAfter)
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		// the request logger prints c.Errors
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "request_id": middleware.RequestID(c)})
	}
}
