package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/chronicle/config"
	"github.com/use-agent/chronicle/coordinate"
	"github.com/use-agent/chronicle/models"
	"github.com/use-agent/chronicle/webhook"
)

// jobStore holds all in-flight and finished collection jobs.
var jobStore sync.Map

func init() {
	// Background goroutine to expire jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			jobStore.Range(func(key, value any) bool {
				job := value.(*models.Job)
				if job.CreatedAt < cutoff {
					jobStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostJob returns a handler for POST /api/v1/jobs.
// It validates the request, registers a job, and runs the collection in
// the background. The caller polls GET /api/v1/jobs/:id or receives a
// webhook event when done.
func PostJob(co *coordinate.Coordinator, cfg config.WebhookConfig) gin.HandlerFunc {
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

		jobID := "job-" + uuid.NewString()
		job := &models.Job{
			ID:        jobID,
			Status:    "processing",
			CaseURL:   req.CaseURL,
			CreatedAt: time.Now().Unix(),
		}
		jobStore.Store(jobID, job)

		go runJob(co, cfg, job, &req)

		c.JSON(http.StatusAccepted, models.JobResponse{
			ID:     jobID,
			Status: "processing",
		})
	}
}

// GetJob returns a handler for GET /api/v1/jobs/:id.
func GetJob() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := jobStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "job not found",
				},
			})
			return
		}

		job := val.(*models.Job)
		resp := models.JobStatusResponse{
			ID:     job.ID,
			Status: job.Status,
		}
		if job.Status != "processing" {
			resp.Timeline = job.Timeline
		}
		c.JSON(http.StatusOK, resp)
	}
}

// runJob performs the collection for an async job and records the outcome.
//
// Jobs in the store are never mutated in place: readers hold the pointer
// they loaded, so the finished state goes in as a fresh value under the
// same ID.
func runJob(co *coordinate.Coordinator, cfg config.WebhookConfig, job *models.Job, req *models.CollectRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(req.Timeout)*time.Second)
	defer cancel()

	resp := runCollect(ctx, co, req)

	status := "completed"
	switch {
	case !resp.Success:
		status = "failed"
	case resp.Failed > 0:
		status = "partial"
	}

	done := &models.Job{
		ID:        job.ID,
		Status:    status,
		CaseURL:   job.CaseURL,
		Timeline:  resp,
		CreatedAt: job.CreatedAt,
	}
	jobStore.Store(job.ID, done)

	if req.WebhookURL == "" {
		return
	}
	eventType := "job.completed"
	if status == "failed" {
		eventType = "job.failed"
	}
	webhook.DeliverAsync(req.WebhookURL, cfg.Secret, &webhook.Event{
		Type:      eventType,
		JobID:     done.ID,
		CaseURL:   done.CaseURL,
		Timestamp: time.Now().Unix(),
		Data:      resp,
	})
}

// loadFinishedJob fetches a job that has run to completion.
func loadFinishedJob(jobID string) (*models.Job, bool) {
	val, ok := jobStore.Load(jobID)
	if !ok {
		return nil, false
	}
	job := val.(*models.Job)
	if job.Status == "processing" {
		return nil, false
	}
	return job, true
}
