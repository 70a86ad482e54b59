package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	lisp "github.com/rphilander/lisp/core"
)

var (
	conn   net.Conn
	connMu sync.Mutex
)

// send sends a request to the lisp daemon and returns the response.
func send(req map[string]any) (map[string]any, error) {
	req["id"] = lisp.NextID()
	connMu.Lock()
	defer connMu.Unlock()
	if err := lisp.WriteMsg(conn, req); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	resp, err := lisp.ReadMsg(conn)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return resp, nil
}

// formatResult turns a daemon response into an MCP tool result.
func formatResult(resp map[string]any) (*mcp.CallToolResult, error) {
	ok, _ := resp["ok"].(bool)
	if !ok {
		errMsg, _ := resp["error"].(string)
		if errMsg == "" {
			errMsg = "unknown error"
		}
		return mcp.NewToolResultError(errMsg), nil
	}
	out, err := json.MarshalIndent(resp["value"], "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func sendAndFormat(req map[string]any) (*mcp.CallToolResult, error) {
	resp, err := send(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return formatResult(resp)
}

func handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := request.RequireString("src")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return sendAndFormat(map[string]any{"op": "run", "src": src})
}

func handleEval(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := request.RequireString("src")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return sendAndFormat(map[string]any{"op": "eval", "src": src})
}

func handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return sendAndFormat(map[string]any{"op": "reset"})
}

func handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := map[string]any{"op": "history"}
	if limit := request.GetInt("limit", 0); limit > 0 {
		req["limit"] = limit
	}
	return sendAndFormat(req)
}

func handleClear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return sendAndFormat(map[string]any{"op": "clear"})
}

func main() {
	sockPath := os.Getenv("LISP_SOCK")
	if sockPath == "" {
		sockPath = "/tmp/lisp.sock"
	}

	var err error
	conn, err = net.Dial("unix", sockPath)
	if err != nil {
		log.Fatalf("connect to %s: %v", sockPath, err)
	}
	defer conn.Close()
	log.Printf("connected to lisp core: %s", sockPath)

	s := server.NewMCPServer(
		"lisp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(
		mcp.NewTool("lisp_run",
			mcp.WithDescription("Run a lisp program in a fresh environment. Returns printed output and per-statement errors."),
			mcp.WithString("src",
				mcp.Required(),
				mcp.Description("Program text, e.g. (defn add [a b] (+ a b)) (println (add 3 4))"),
			),
		),
		handleRun,
	)

	s.AddTool(
		mcp.NewTool("lisp_eval",
			mcp.WithDescription("Evaluate lisp source in the persistent session. Definitions survive between calls; returns the last value."),
			mcp.WithString("src",
				mcp.Required(),
				mcp.Description("Source to evaluate, e.g. (map (fn [x] (* x x)) '(1 2 3))"),
			),
		),
		handleEval,
	)

	s.AddTool(
		mcp.NewTool("lisp_reset",
			mcp.WithDescription("Discard every definition in the persistent session."),
		),
		handleReset,
	)

	s.AddTool(
		mcp.NewTool("lisp_history",
			mcp.WithDescription("List recent runs with their source, output and errors, oldest first."),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of runs to return"),
			),
		),
		handleHistory,
	)

	s.AddTool(
		mcp.NewTool("lisp_clear",
			mcp.WithDescription("Delete the recorded run history."),
		),
		handleClear,
	)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
