package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000"

// Smoke test for a locally running server. Requires a seeded user:
//
//	go run ./scripts/test_chat_api.go <username> <password>
func prettyPrint(body []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(out.String())
}

func post(path, token string, payload any) ([]byte, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}

func ask(question, mode string) {
	color.Yellow("\n[QUERY] %s (mode=%q)", question, mode)
	body, status, err := post("/api/query", "", map[string]any{
		"question":   question,
		"mode":       mode,
		"session_id": "smoke-test",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		return
	}
	color.Green("Status: %d", status)
	prettyPrint(body)
}

func main() {
	color.Cyan("🚀 Cubie Assistant API Smoke Test\n")

	if len(os.Args) >= 3 {
		color.Yellow("\n[AUTH] Login")
		body, status, err := post("/api/login", "", map[string]string{
			"username": os.Args[1],
			"password": os.Args[2],
		})
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		color.Green("Status: %d", status)
		prettyPrint(body)
	}

	ask("hello", "")
	ask("how do I use the rate calculator", "help")
	ask("how many shipments do we have this month", "")
	ask("show me a bar chart of top 5 carriers", "analytics")
	ask("take me to the dispute management page", "")

	color.Yellow("\n[APPROVAL] Reject any pending draft")
	body, status, err := post("/api/approve-email", "", map[string]any{
		"session_id": "smoke-test",
		"approved":   false,
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %d", status)
	prettyPrint(body)

	color.Cyan("\nDone")
}
