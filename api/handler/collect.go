package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/chronicle/cache"
	"github.com/use-agent/chronicle/coordinate"
	"github.com/use-agent/chronicle/models"
)

// Collect returns a handler for POST /api/v1/collect, the synchronous
// collection endpoint. The request blocks until the whole case is gathered.
func Collect(co *coordinate.Coordinator, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CollectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		key := cache.Key(req.CaseURL, req.Kinds)
		if cached, hit := cc.Get(key, req.MaxAgeMs); hit {
			resp := *cached
			resp.CacheStatus = "hit"
			c.JSON(http.StatusOK, resp)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(),
			time.Duration(req.Timeout)*time.Second)
		defer cancel()

		resp := runCollect(ctx, co, &req)
		if !resp.Success {
			c.JSON(statusFor(resp.Error), resp)
			return
		}

		cc.Set(key, resp)
		if req.MaxAgeMs > 0 {
			resp.CacheStatus = "miss"
		}
		c.JSON(http.StatusOK, resp)
	}
}

// runCollect executes one collection and packages the outcome, shared by
// the sync endpoint and the async job runner.
func runCollect(ctx context.Context, co *coordinate.Coordinator, req *models.CollectRequest) *models.TimelineResponse {
	start := time.Now()

	kinds := make([]models.ItemKind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kinds = append(kinds, models.ItemKind(k))
	}

	tl, err := co.Collect(ctx, req.CaseURL, kinds)
	if err != nil {
		return &models.TimelineResponse{
			Success: false,
			CaseURL: req.CaseURL,
			Error:   errorDetail(err),
			Timing:  models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
		}
	}

	return &models.TimelineResponse{
		Success:  true,
		CaseURL:  req.CaseURL,
		Entries:  tl.Entries,
		Unparsed: tl.Unparsed,
		Total:    tl.Total(),
		Failed:   tl.Failed(),
		Timing: models.TimingInfo{
			TotalMs:     time.Since(start).Milliseconds(),
			DiscoveryMs: tl.DiscoveredIn.Milliseconds(),
			CollectMs:   tl.CollectedIn.Milliseconds(),
		},
	}
}

// errorDetail maps any error to an API-facing detail.
func errorDetail(err error) *models.ErrorDetail {
	var ce *models.CollectError
	if errors.As(err, &ce) {
		return ce.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

// statusFor maps error codes to HTTP statuses.
func statusFor(detail *models.ErrorDetail) int {
	if detail == nil {
		return http.StatusInternalServerError
	}
	switch detail.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeListFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
