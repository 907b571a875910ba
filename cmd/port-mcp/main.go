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

// mirrorResponse mirrors the Port API job-creation response model.
type mirrorResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Status  string `json:"status"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// mirrorStatusResponse mirrors the Port API job-status response model.
type mirrorStatusResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	OutputDir string `json:"output_dir"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Pages     []struct {
		URL      string `json:"url"`
		Title    string `json:"title"`
		Document string `json:"document"`
		Engine   string `json:"engine"`
		Summary  struct {
			Attempted         int `json:"attempted"`
			Mirrored          int `json:"mirrored"`
			SkippedOutOfScope int `json:"skipped_out_of_scope"`
			Failed            int `json:"failed"`
		} `json:"summary"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"pages"`
	Summary struct {
		Attempted         int `json:"attempted"`
		Mirrored          int `json:"mirrored"`
		SkippedOutOfScope int `json:"skipped_out_of_scope"`
		Failed            int `json:"failed"`
	} `json:"summary"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("PORT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PORT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PORT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"port",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	mirrorPageTool := mcp.NewTool("mirror_page",
		mcp.WithDescription("Mirror a rendered web page into a self-contained offline bundle: the page's HTML plus every same-origin CSS/JS/image/frame resource, with references rewritten to local paths."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to mirror"),
		),
		mcp.WithString("name",
			mcp.Description("Bundle directory name under the server's output root (default: derived from the URL)"),
		),
		mcp.WithString("fetch_mode",
			mcp.Description("Page rendering mode: 'auto' (default, HTTP first with browser escalation), 'http', or 'browser'"),
			mcp.Enum("auto", "http", "browser"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Enable bot-detection evasions during rendering (default: false)"),
		),
	)
	s.AddTool(mirrorPageTool, handleMirrorPage(apiURL, apiKey))

	mirrorSiteTool := mcp.NewTool("mirror_site",
		mcp.WithDescription("Mirror a multi-tab site: the landing page plus every navigation tab discovered on it, stitched together under one offline index with rewired navigation."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The landing page URL whose navigation tabs are discovered"),
		),
		mcp.WithString("name",
			mcp.Description("Site directory name under the server's output root (default: derived from the URL)"),
		),
		mcp.WithNumber("max_tabs",
			mcp.Description("Maximum number of discovered tabs to mirror (default: 16, max: 64)"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Enable bot-detection evasions during rendering (default: false)"),
		),
	)
	s.AddTool(mirrorSiteTool, handleMirrorSite(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Port API and returns the response body.
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

// startAndAwait creates a mirror or site job and waits for it to finish.
func startAndAwait(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) (*mirrorStatusResponse, error) {
	respBody, err := apiPost(ctx, client, apiURL, apiKey, path, payload)
	if err != nil {
		return nil, err
	}

	var created mirrorResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("parse job response: %w", err)
	}
	if !created.Success || created.ID == "" {
		if created.Error != nil {
			return nil, fmt.Errorf("[%s] %s", created.Error.Code, created.Error.Message)
		}
		return nil, fmt.Errorf("job creation failed")
	}

	resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/mirror/"+created.ID)
	if err != nil {
		return nil, fmt.Errorf("polling job failed: %w", err)
	}

	var status mirrorStatusResponse
	if err := json.Unmarshal(resultBody, &status); err != nil {
		return nil, fmt.Errorf("parse job status: %w", err)
	}
	return &status, nil
}

// formatStatus renders a job status as readable text for the tool result.
func formatStatus(status *mirrorStatusResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job %s: %s\n", status.ID, status.Status))
	sb.WriteString(fmt.Sprintf("Bundle: %s\n", status.OutputDir))
	sb.WriteString(fmt.Sprintf("Resources: %d mirrored, %d out of scope, %d failed (of %d attempted)\n",
		status.Summary.Mirrored, status.Summary.SkippedOutOfScope,
		status.Summary.Failed, status.Summary.Attempted))

	for i, p := range status.Pages {
		if p.Error != nil {
			sb.WriteString(fmt.Sprintf("--- Page %d: %s FAILED: [%s] %s ---\n",
				i+1, p.URL, p.Error.Code, p.Error.Message))
			continue
		}
		sb.WriteString(fmt.Sprintf("--- Page %d: %s (%s) -> %s [%d mirrored, %d failed] ---\n",
			i+1, p.Title, p.URL, p.Document, p.Summary.Mirrored, p.Summary.Failed))
	}

	if status.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: [%s] %s\n", status.Error.Code, status.Error.Message))
	}
	return sb.String()
}

func handleMirrorPage(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]interface{}{"url": url}
		if name := request.GetString("name", ""); name != "" {
			payload["name"] = name
		}
		if mode := request.GetString("fetch_mode", ""); mode != "" {
			payload["fetch_mode"] = mode
		}
		if request.GetBool("stealth", false) {
			payload["stealth"] = true
		}

		status, err := startAndAwait(ctx, client, apiURL, apiKey, "/api/v1/mirror", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("mirror failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatStatus(status)), nil
	}
}

func handleMirrorSite(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]interface{}{"url": url}
		if name := request.GetString("name", ""); name != "" {
			payload["name"] = name
		}
		args := request.GetArguments()
		if maxTabs, ok := args["max_tabs"]; ok {
			payload["max_tabs"] = maxTabs
		}
		if request.GetBool("stealth", false) {
			payload["stealth"] = true
		}

		status, err := startAndAwait(ctx, client, apiURL, apiKey, "/api/v1/site", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("site mirror failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatStatus(status)), nil
	}
}
