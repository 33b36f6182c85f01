package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// collectRequest mirrors the Chronicle API request model.
type collectRequest struct {
	CaseURL string   `json:"case_url"`
	Kinds   []string `json:"kinds,omitempty"`
	Timeout int      `json:"timeout,omitempty"`
}

// record mirrors a single timeline entry.
type record struct {
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Body       string `json:"body"`
	Recipients string `json:"recipients,omitempty"`
	OccurredAt string `json:"occurred_at,omitempty"`
	SourceURL  string `json:"source_url"`
	Error      string `json:"error_message,omitempty"`
}

// timelineResponse mirrors the Chronicle timeline payload.
type timelineResponse struct {
	Success  bool     `json:"success"`
	CaseURL  string   `json:"case_url"`
	Entries  []record `json:"entries"`
	Unparsed []record `json:"unparsed"`
	Total    int      `json:"total"`
	Failed   int      `json:"failed"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// jobResponse mirrors the Chronicle job creation response.
type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// jobStatusResponse mirrors the Chronicle job status response.
type jobStatusResponse struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Timeline *timelineResponse `json:"timeline"`
}

// reportResponse mirrors the Chronicle report response.
type reportResponse struct {
	Success bool   `json:"success"`
	Format  string `json:"format"`
	Content string `json:"content"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("CHRONICLE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("CHRONICLE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "CHRONICLE_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"chronicle",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	collectTool := mcp.NewTool("collect_case",
		mcp.WithDescription("Collect the notes and emails attached to a case record and return them as a chronological timeline. Uses a headless browser to extract each related record."),
		mcp.WithString("case_url",
			mcp.Required(),
			mcp.Description("The URL of the case record whose related records are collected"),
		),
		mcp.WithArray("kinds",
			mcp.Description("Record kinds to collect: 'note', 'email'. Default: both."),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Maximum collection time in seconds (default: 120, max: 600)"),
		),
	)
	s.AddTool(collectTool, handleCollectCase(apiURL, apiKey))

	reportTool := mcp.NewTool("render_report",
		mcp.WithDescription("Render the timeline of a finished collection job as a markdown or HTML report."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The ID of a finished collection job"),
		),
		mcp.WithString("format",
			mcp.Description("Report format: 'markdown' (default) or 'html'"),
			mcp.Enum("markdown", "html"),
		),
	)
	s.AddTool(reportTool, handleRenderReport(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Chronicle API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer "processing" or context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

func handleCollectCase(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caseURL, err := request.RequireString("case_url")
		if err != nil {
			return mcp.NewToolResultError("case_url is required"), nil
		}

		payload := collectRequest{CaseURL: caseURL}
		if kinds, err := request.RequireStringSlice("kinds"); err == nil {
			payload.Kinds = kinds
		}
		args := request.GetArguments()
		if timeout, ok := args["timeout"].(float64); ok && timeout > 0 {
			payload.Timeout = int(timeout)
		}

		// POST to create the collection job.
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/jobs", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("collect request failed: %v", err)), nil
		}

		var jobResp jobResponse
		if err := json.Unmarshal(respBody, &jobResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse job response: %v", err)), nil
		}
		if jobResp.ID == "" {
			return mcp.NewToolResultError("collection job creation failed"), nil
		}

		// Poll for completion.
		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/jobs/"+jobResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling collection job failed: %v", err)), nil
		}

		var statusResp jobStatusResponse
		if err := json.Unmarshal(resultBody, &statusResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse job status: %v", err)), nil
		}

		if statusResp.Timeline == nil {
			return mcp.NewToolResultError(fmt.Sprintf("job %s finished with status %q but carries no timeline", statusResp.ID, statusResp.Status)), nil
		}
		tl := statusResp.Timeline
		if !tl.Success {
			errMsg := "collection failed"
			if tl.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", tl.Error.Code, tl.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		// Format the timeline.
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Timeline for %s (job %s): %d records, %d failed\n\n", tl.CaseURL, statusResp.ID, tl.Total, tl.Failed))
		for _, rec := range tl.Entries {
			sb.WriteString(formatRecord(rec))
		}
		if len(tl.Unparsed) > 0 {
			sb.WriteString("--- Records without a parseable date ---\n\n")
			for _, rec := range tl.Unparsed {
				sb.WriteString(formatRecord(rec))
			}
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// formatRecord renders one timeline entry as plain text.
func formatRecord(rec record) string {
	var sb strings.Builder
	header := rec.Title
	if header == "" {
		header = rec.SourceURL
	}
	sb.WriteString(fmt.Sprintf("--- [%s] %s ---\n", rec.Kind, header))
	if rec.OccurredAt != "" {
		sb.WriteString("Date: " + rec.OccurredAt + "\n")
	}
	if rec.Author != "" {
		sb.WriteString("Author: " + rec.Author + "\n")
	}
	if rec.Recipients != "" {
		sb.WriteString("To: " + rec.Recipients + "\n")
	}
	if rec.Error != "" {
		sb.WriteString("FAILED: " + rec.Error + "\n\n")
		return sb.String()
	}
	sb.WriteString("\n" + rec.Body + "\n\n")
	return sb.String()
}

func handleRenderReport(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}

		payload := map[string]string{"job_id": jobID}
		if format := request.GetString("format", ""); format != "" {
			payload["format"] = format
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/report", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("report request failed: %v", err)), nil
		}

		var repResp reportResponse
		if err := json.Unmarshal(respBody, &repResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse report response: %v", err)), nil
		}

		if !repResp.Success {
			errMsg := "report rendering failed"
			if repResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", repResp.Error.Code, repResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(repResp.Content), nil
	}
}
