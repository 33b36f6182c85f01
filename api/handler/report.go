package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/chronicle/coordinate"
	"github.com/use-agent/chronicle/models"
	"github.com/use-agent/chronicle/report"
)

// Report returns a handler for POST /api/v1/report.
// It renders the timeline of a finished job as markdown or HTML.
func Report(rd *report.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ReportResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		if req.Format == "" {
			req.Format = "markdown"
		}

		job, ok := loadFinishedJob(req.JobID)
		if !ok {
			c.JSON(http.StatusNotFound, models.ReportResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "job not found or still processing",
				},
			})
			return
		}
		if job.Status == "failed" {
			c.JSON(http.StatusConflict, models.ReportResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInternal,
					Message: "job failed; no timeline to render",
				},
			})
			return
		}

		tl := &coordinate.Timeline{
			CaseURL:  job.CaseURL,
			Entries:  job.Timeline.Entries,
			Unparsed: job.Timeline.Unparsed,
		}

		var content string
		var err error
		switch req.Format {
		case "html":
			content, err = rd.HTML(tl)
		default:
			content, err = rd.Markdown(tl)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ReportResponse{
				Success: false,
				Format:  req.Format,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInternal,
					Message: err.Error(),
				},
			})
			return
		}

		c.JSON(http.StatusOK, models.ReportResponse{
			Success: true,
			Format:  req.Format,
			Content: content,
		})
	}
}
