package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

func main() {
	baseURL := flag.String("server", envOr("QUESTLOG_SERVER_URL", "http://127.0.0.1:8080"), "server URL (e.g. http://127.0.0.1:8080)")
	timeout := flag.Duration("timeout", 10*time.Second, "HTTP timeout (scan/sync use 10x)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: *timeout}
	longClient := &http.Client{Timeout: 10 * *timeout}
	api := *baseURL + "/api/v1"

	switch args[0] {
	case "health":
		get(client, api+"/health")
	case "version":
		get(client, api+"/version")
	case "list":
		q := url.Values{}
		if len(args) > 1 {
			q.Set("q", args[1])
		}
		get(client, api+"/series/?"+q.Encode())
	case "add":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: questlog add <series-url>")
			os.Exit(2)
		}
		post(client, api+"/series/", map[string]string{"url": args[1]})
	case "read":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: questlog read <id> <chapter>")
			os.Exit(2)
		}
		post(client, api+"/series/"+args[1]+"/mark-read", map[string]any{"chapter": atoiOrDie(args[2])})
	case "continue":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: questlog continue <id>")
			os.Exit(2)
		}
		post(client, api+"/series/"+args[1]+"/continue", nil)
	case "scan":
		post(longClient, api+"/scan", nil)
	case "sync":
		post(longClient, api+"/anilist/sync", nil)
	case "status":
		get(client, api+"/anilist/status")
	default:
		fmt.Fprintln(os.Stderr, "Unknown command:", args[0])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: questlog [health|version|list [query]|add <url>|read <id> <chapter>|continue <id>|scan|sync|status]")
}

func get(client *http.Client, url string) {
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	render(resp)
}

func post(client *http.Client, url string, body any) {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		reader = bytes.NewReader(b)
	}
	resp, err := client.Post(url, "application/json", reader)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	render(resp)
}

func render(resp *http.Response) {
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	var pretty any
	if err := json.Unmarshal(b, &pretty); err == nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(pretty)
		if resp.StatusCode >= 400 {
			os.Exit(1)
		}
		return
	}

	os.Stdout.Write(b)
	os.Stdout.Write([]byte("\n"))
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func atoiOrDie(s string) int {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		fmt.Fprintln(os.Stderr, "chapter must be a positive number")
		os.Exit(2)
	}
	return n
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
