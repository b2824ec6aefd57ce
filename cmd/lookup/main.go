// Command lookup is a small query client for a running levelboard server.
//
// Usage:
//
//	lookup [-root http://localhost:8080] <id | name#discriminator>
//
// It calls the server's JSON API and prints a one-line summary, which is
// handy for checking the cache state without opening a browser.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// profile mirrors the server's /api response shape.
type profile struct {
	ID            uint64  `json:"id"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	XP            uint64  `json:"xp"`
	Rank          int64   `json:"rank"`
	Level         uint64  `json:"level"`
	LevelProgress float64 `json:"level_progress"`
}

// apiError mirrors the server's error response shape.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func main() {
	root := flag.String("root", "http://localhost:8080", "base URL of the levelboard server")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: lookup [-root URL] <id | name#discriminator>")
		os.Exit(2)
	}
	identifier := flag.Arg(0)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(*root + "/api?id=" + url.QueryEscape(identifier))
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup: reading response: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			fmt.Fprintln(os.Stderr, apiErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "lookup: server returned status %d\n", resp.StatusCode)
		}
		os.Exit(1)
	}

	var p profile
	if err := json.Unmarshal(body, &p); err != nil {
		fmt.Fprintf(os.Stderr, "lookup: decoding response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s#%s (%d) is level %d — rank #%d, %d XP (%.0f%% to next level)\n",
		p.Username, p.Discriminator, p.ID, p.Level, p.Rank, p.XP, p.LevelProgress*100)
	fmt.Printf("card: %s/card?id=%d\n", *root, p.ID)
}
