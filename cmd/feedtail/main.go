// Command feedtail walks an activity stream feed as a consumer would: it
// signs each request, verifies the Server-Authorization header of each page
// against the exact response bytes, prints the item ids, and follows next
// links until the stream is exhausted.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/uktrade/directory-api-sub000/internal/macauth"
)

type collectionPage struct {
	OrderedItems []struct {
		ID        string `json:"id"`
		Published string `json:"published"`
	} `json:"orderedItems"`
	Next string `json:"next,omitempty"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	feedURL := flag.String("url", "", "feed URL to walk, e.g. http://localhost:8080/activity-stream/organizations/")
	keyID := flag.String("key-id", os.Getenv("STREAMFEED_KEY_ID"), "caller key id")
	secret := flag.String("secret", os.Getenv("STREAMFEED_SECRET"), "shared secret")
	flag.Parse()

	if *feedURL == "" || *keyID == "" || *secret == "" {
		slog.Error("feedtail requires -url, -key-id and -secret")
		os.Exit(1)
	}

	cred := macauth.Credential{KeyID: *keyID, Secret: []byte(*secret)}
	client := &http.Client{Timeout: 30 * time.Second}

	next := *feedURL
	pages, items := 0, 0
	for next != "" {
		page, err := fetchPage(client, cred, next)
		if err != nil {
			slog.Error("feedtail: page fetch failed", "url", next, "error", err)
			os.Exit(1)
		}
		for _, item := range page.OrderedItems {
			fmt.Printf("%s\t%s\n", item.Published, item.ID)
			items++
		}
		pages++
		next = page.Next
	}
	slog.Info("feedtail: walk complete", "pages", pages, "items", items)
}

// fetchPage requests one feed page and verifies its response MAC.
func fetchPage(client *http.Client, cred macauth.Credential, url string) (*collectionPage, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Forwarded-For", "feedtail")
	nonce, err := macauth.SignRequest(req, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	serverAuth := resp.Header.Get("Server-Authorization")
	if err := macauth.VerifyResponse(cred.Secret, http.MethodGet, url, nonce, resp.Header.Get("Content-Type"), body, serverAuth); err != nil {
		return nil, fmt.Errorf("response verification failed: %w", err)
	}

	var page collectionPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return &page, nil
}
