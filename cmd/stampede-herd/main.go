// stampede-herd fires a burst of concurrent requests for the same key at a
// running stampede instance and reports how many distinct fetches the herd
// produced. Against a healthy instance the answer is one.
package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

func makeRequest(httpClient *http.Client, baseURL, key string) (string, time.Duration, error) {
	start := time.Now()

	resp, err := httpClient.Get(fmt.Sprintf("%s/v1/document?key=%s", baseURL, url.QueryEscape(key)))
	if err != nil {
		return "", 0, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	fetchedAt := resp.Header.Get("X-Stampede-Fetched-At")
	if fetchedAt == "" {
		fetchedAt = "<missing>"
	}

	return fetchedAt, time.Since(start), nil
}

func main() {
	if len(os.Args) < 3 {
		log.Fatalf("usage: %s <base-url> <key> [callers]", os.Args[0])
	}

	baseURL := os.Args[1]
	key := os.Args[2]

	callers := 10
	if len(os.Args) > 3 {
		parsed, err := strconv.Atoi(os.Args[3])
		if err != nil || parsed < 1 {
			log.Fatalf("invalid caller count: %s", os.Args[3])
		}
		callers = parsed
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	fetches := make([]string, callers)
	latencies := make([]time.Duration, callers)

	var group errgroup.Group
	for i := range callers {
		group.Go(func() error {
			fetchedAt, latency, err := makeRequest(httpClient, baseURL, key)
			if err != nil {
				return err
			}
			fetches[i] = fetchedAt
			latencies[i] = latency
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		log.Fatalf("herd failed: %v", err)
	}

	distinct := make(map[string]int)
	for i := range callers {
		distinct[fetches[i]]++
		fmt.Printf("caller %2d: fetchedAt=%s latency=%s\n", i, fetches[i], latencies[i])
	}

	fmt.Printf("\n%d callers -> %d distinct fetch(es)\n", callers, len(distinct))
}
