package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/KanavDutta/admission/middleware"
)

// This demonstrates how a client sees the admission filters: a burst that
// runs into the QuickCreate limit, then a retried save that is replayed.

type demoConfig struct {
	BaseURL   string
	Secret    string
	Principal string
	Requests  int
}

type summary struct {
	Allowed  int
	Blocked  int
	Replayed int
}

func main() {
	var cfg demoConfig
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "admission service base URL")
	flag.StringVar(&cfg.Secret, "secret", os.Getenv("ADMISSION_AUTH_JWT_SECRET"), "HS256 secret shared with the server")
	flag.StringVar(&cfg.Principal, "principal", "user-123", "oid claim of the demo token")
	flag.IntVar(&cfg.Requests, "requests", 15, "QuickCreate requests to send")
	flag.Parse()

	fmt.Println("Admission Client Demo")
	fmt.Println("=====================")
	fmt.Println("Principal:", cfg.Principal)
	fmt.Println()

	client := &http.Client{Timeout: 5 * time.Second}
	if _, err := run(context.Background(), client, cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "demo failed:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *http.Client, cfg demoConfig, out io.Writer) (summary, error) {
	var sum summary

	token, err := mintToken(cfg.Secret, cfg.Principal)
	if err != nil {
		return sum, err
	}

	fmt.Fprintln(out, "Burst against /api/quickcreate")
	for i := 1; i <= cfg.Requests; i++ {
		resp, err := post(ctx, client, cfg.BaseURL+"/api/quickcreate", token, fmt.Sprintf(`{"n":%d}`, i))
		if err != nil {
			return sum, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			sum.Blocked++
			fmt.Fprintf(out, "Request %2d: BLOCKED  (retry after %ss)\n", i, resp.Header.Get(middleware.HeaderRetryAfter))
			continue
		}
		sum.Allowed++
		fmt.Fprintf(out, "Request %2d: ALLOWED  (%s/%s remaining)\n", i,
			resp.Header.Get(middleware.HeaderRateLimitRemaining), resp.Header.Get(middleware.HeaderRateLimitLimit))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Retrying the same save twice")
	body := `{"title":"quarterly report","tags":["q3"]}`
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := post(ctx, client, cfg.BaseURL+"/api/save", token, body)
		if err != nil {
			return sum, err
		}

		status := resp.Header.Get(middleware.HeaderIdempotencyStatus)
		if status == middleware.IdempotencyStatusCached {
			sum.Replayed++
		}
		fmt.Fprintf(out, "Attempt %d: %d %s id=%s\n", attempt, resp.StatusCode, status, resp.id)
	}
	return sum, nil
}

func mintToken(secret, principal string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("a JWT secret is required, set -secret")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"oid": principal,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
}

type demoResponse struct {
	*http.Response
	id string
}

func post(ctx context.Context, client *http.Client, url, token, body string) (*demoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling admission service: %w", err)
	}
	defer resp.Body.Close()

	var entity struct {
		ID string `json:"id"`
	}
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &entity)

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("admission service returned %d", resp.StatusCode)
	}
	return &demoResponse{Response: resp, id: entity.ID}, nil
}
