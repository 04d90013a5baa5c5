package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sparqlgen/internal/config"
)

func main() {
	question := flag.String("question", "Which classes are defined in the ontology?", "question sent to ask_graph")
	rawQuery := flag.String("query", "ASK { ?s ?p ?o }", "query sent to query_graph")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := cfg.RequireLLM(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	fmt.Println("🧪 Testing sparqlgen MCP tools")
	fmt.Println("==============================")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	serverPath := findServerBinary()
	if serverPath == "" {
		log.Fatal("❌ sparqlgen binary not found. Run: go build -o sparqlgen .")
	}
	fmt.Println("✅ Test 1: sparqlgen binary found")

	// The server inherits the environment, including values from .env.
	cmd := exec.Command(serverPath, "mcp")
	cmd.Stderr = os.Stderr
	transport := &mcp.CommandTransport{Command: cmd}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "sparqlgen-smoke",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MCP server: %v", err)
	}
	defer session.Close()
	fmt.Println("✅ Test 2: Connected to MCP server")

	fmt.Println("\n✓ Test 3: Listing available tools")
	listResult, err := session.ListTools(ctx, nil)
	if err != nil {
		log.Fatalf("❌ Failed to list tools: %v", err)
	}
	fmt.Printf("  Found %d tools:\n", len(listResult.Tools))
	for _, tool := range listResult.Tools {
		fmt.Printf("  - %s\n", tool.Name)
	}

	fmt.Printf("\n✓ Test 4: query_graph %q against %s\n", *rawQuery, cfg.Dialect)
	report(session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "query_graph",
		Arguments: map[string]any{"query": *rawQuery},
	}))

	fmt.Printf("\n✓ Test 5: ask_graph %q\n", *question)
	askCtx, askCancel := context.WithTimeout(ctx, time.Duration(cfg.MaxAttempts+2)*cfg.RequestTimeout)
	defer askCancel()
	report(session.CallTool(askCtx, &mcp.CallToolParams{
		Name:      "ask_graph",
		Arguments: map[string]any{"question": *question},
	}))

	fmt.Println("\n==============================")
	fmt.Println("✅ MCP tool tests complete")
	fmt.Println("\n💡 To test interactively, run: go run ./cmd/mcp-client ./sparqlgen mcp")
}

func report(result *mcp.CallToolResult, err error) {
	if err != nil {
		fmt.Printf("  ❌ Call failed: %v\n", err)
		return
	}
	if result.IsError {
		fmt.Println("  ⚠️  Tool returned an error:")
	} else {
		fmt.Println("  ✅ Tool called successfully")
	}

	if result.StructuredContent != nil {
		data, err := json.MarshalIndent(result.StructuredContent, "    ", "  ")
		if err == nil {
			preview := string(data)
			if len(preview) > 600 {
				preview = preview[:600] + "..."
			}
			fmt.Printf("    %s\n", preview)
			return
		}
	}
	for _, content := range result.Content {
		if v, ok := content.(*mcp.TextContent); ok {
			fmt.Printf("    %s\n", v.Text)
		}
	}
}

func findServerBinary() string {
	candidates := []string{
		"./sparqlgen",
		"../../sparqlgen",
	}
	for _, p := range candidates {
		if abs, err := filepath.Abs(p); err == nil {
			if _, err := os.Stat(abs); err == nil {
				return abs
			}
		}
	}
	return ""
}
