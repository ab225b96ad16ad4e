package handler

import (
	"strconv"
	"time"

	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// actor returns the authenticated caller or writes a 401.
func actor(c *gin.Context) (ports.Actor, bool) {
	a, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return ports.Actor{}, false
	}
	return a, true
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Validation("invalid " + name)
	}
	return id, nil
}

func queryInt64(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil, apperror.Validation("invalid " + name)
	}
	return &v, nil
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.Validation(name + " must be an RFC 3339 timestamp")
	}
	return &t, nil
}

func period(c *gin.Context) (ports.Period, error) {
	from, err := queryTime(c, "from")
	if err != nil {
		return ports.Period{}, err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return ports.Period{}, err
	}
	return ports.Period{From: from, To: to}, nil
}

// paging reads page and page_size. Zero values let the service apply its defaults.
func paging(c *gin.Context) (int, int, error) {
	page, size := 0, 0
	if raw := c.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return 0, 0, apperror.Validation("invalid page")
		}
		page = v
	}
	if raw := c.Query("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return 0, 0, apperror.Validation("invalid page_size")
		}
		size = v
	}
	return page, size, nil
}

func idempotencyKey(c *gin.Context) string {
	return c.GetHeader(middleware.HeaderIdempotencyKey)
}
