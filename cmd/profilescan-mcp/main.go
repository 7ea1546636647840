// Command profilescan-mcp exposes the profilescan HTTP API as MCP tools over
// stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scanRequest mirrors the profilescan API request model.
type scanRequest struct {
	URL   string `json:"url"`
	Model string `json:"model,omitempty"`
	Login bool   `json:"login,omitempty"`
}

// scanResponse mirrors the parts of the profilescan API response the tool
// reports.
type scanResponse struct {
	Success bool `json:"success"`
	Report  *struct {
		RiskLevel       string   `json:"risk_level"`
		RedFlags        []string `json:"red_flags"`
		PositiveSignals []string `json:"positive_signals"`
		Concerns        []string `json:"concerns"`
		Conclusion      string   `json:"conclusion"`
		Confidence      string   `json:"confidence"`
		Model           string   `json:"model"`
		FellBack        bool     `json:"fell_back"`
	} `json:"report"`
	Scrape *struct {
		Strategy      string `json:"strategy"`
		Rounds        int    `json:"rounds"`
		Authenticated bool   `json:"authenticated"`
	} `json:"scrape"`
	CacheStatus string `json:"cache_status"`
	Error       *struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Artifact string `json:"artifact"`
	} `json:"error"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	Version       string `json:"version"`
	ScanActive    bool   `json:"scan_active"`
	SessionExists bool   `json:"session_exists"`
}

func main() {
	apiURL := os.Getenv("PROFILESCAN_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PROFILESCAN_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PROFILESCAN_API_KEY is required")
		os.Exit(1)
	}

	// A scan may run several browser rounds plus a model call.
	client := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetHeader("X-API-Key", apiKey).
		SetTimeout(10 * time.Minute)

	s := server.NewMCPServer(
		"profilescan",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scanTool := mcp.NewTool("scan_profile",
		mcp.WithDescription("Analyze a LinkedIn profile for signs of a fake or fraudulent candidate. Scrapes the page with a real browser session and returns a risk report (Low/Medium/High) with red flags, positive signals and a conclusion."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("LinkedIn profile URL, e.g. https://www.linkedin.com/in/username"),
		),
		mcp.WithString("model",
			mcp.Description("Model to use for the analysis (server default when omitted)"),
		),
		mcp.WithBoolean("login",
			mcp.Description("Sign in with the server's configured credentials when no session exists"),
		),
	)
	s.AddTool(scanTool, handleScan(client))

	healthTool := mcp.NewTool("server_health",
		mcp.WithDescription("Report whether the profilescan server is up, busy with a scan, and holding a signed-in session."),
	)
	s.AddTool(healthTool, handleHealth(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleScan(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var scanResp scanResponse
		_, err = client.R().
			SetContext(ctx).
			SetBody(scanRequest{
				URL:   url,
				Model: request.GetString("model", ""),
				Login: request.GetBool("login", false),
			}).
			SetResult(&scanResp).
			SetError(&scanResp).
			Post("/api/v1/scan")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}

		if !scanResp.Success {
			errMsg := "scan failed"
			if e := scanResp.Error; e != nil {
				errMsg = fmt.Sprintf("[%s] %s", e.Code, e.Message)
				if e.Artifact != "" {
					errMsg += "\nScreenshot saved on the server: " + e.Artifact
				}
			}
			return mcp.NewToolResultError(errMsg), nil
		}
		if scanResp.Report == nil {
			return mcp.NewToolResultError("server returned no report"), nil
		}

		return mcp.NewToolResultText(formatReport(url, &scanResp)), nil
	}
}

func formatReport(url string, resp *scanResponse) string {
	r := resp.Report
	var b strings.Builder
	fmt.Fprintf(&b, "Profile: %s\nRisk level: %s", url, r.RiskLevel)
	if r.Confidence != "" {
		fmt.Fprintf(&b, " (confidence: %s)", r.Confidence)
	}
	model := r.Model
	if r.FellBack {
		model += " (fallback)"
	}
	fmt.Fprintf(&b, "\nModel: %s\n", model)

	writeList(&b, "Red flags", r.RedFlags)
	writeList(&b, "Positive signals", r.PositiveSignals)
	writeList(&b, "Concerns", r.Concerns)
	if r.Conclusion != "" {
		fmt.Fprintf(&b, "\nConclusion: %s\n", r.Conclusion)
	}

	if s := resp.Scrape; s != nil {
		fmt.Fprintf(&b, "\n---\nExtraction: %s, %d round(s), signed in: %t", s.Strategy, s.Rounds, s.Authenticated)
	}
	if resp.CacheStatus != "" {
		fmt.Fprintf(&b, "\nCache: %s", resp.CacheStatus)
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func handleHealth(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var health healthResponse
		resp, err := client.R().
			SetContext(ctx).
			SetResult(&health).
			Get("/api/v1/health")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		if resp.IsError() {
			return mcp.NewToolResultError(fmt.Sprintf("health check returned %d", resp.StatusCode())), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Status: %s\nVersion: %s\nUptime: %s\nScan running: %t\nSigned-in session: %t",
			health.Status, health.Version, health.Uptime, health.ScanActive, health.SessionExists,
		)), nil
	}
}
