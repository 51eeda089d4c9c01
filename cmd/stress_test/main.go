package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Fires concurrent single-unit orders at one product through the HTTP API
// and checks that successes never exceed the stock that was available.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	email := flag.String("email", "owner@example.com", "login email")
	password := flag.String("password", "", "login password")
	customerID := flag.Int64("customer", 1, "customer id to order for")
	productID := flag.Int64("product", 1, "product id to order")
	totalRequests := flag.Int("requests", 50, "number of orders to submit")
	concurrency := flag.Int("concurrency", 50, "maximum in-flight requests")
	flag.Parse()

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}

	token, err := login(ctx, client, *baseURL, *email, *password)
	if err != nil {
		log.Fatalf("failed to login: %v", err)
	}

	initialStock, err := productStock(ctx, client, *baseURL, token, *productID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}

	// Counters
	var successCount atomic.Int32
	var stockoutCount atomic.Int32
	var failCount atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		g.Go(func() error {
			status, err := placeOrder(gctx, client, *baseURL, token, *customerID, *productID)
			switch {
			case err != nil:
				log.Printf("request failed: %v", err)
				failCount.Add(1)
			case status == http.StatusCreated:
				successCount.Add(1)
			case status == http.StatusConflict:
				stockoutCount.Add(1)
			default:
				log.Printf("unexpected status %d", status)
				failCount.Add(1)
			}
			return nil
		})
	}
	g.Wait()
	elapsed := time.Since(start)

	finalStock, err := productStock(ctx, client, *baseURL, token, *productID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}

	// Results
	success := int(successCount.Load())
	expected := min(initialStock, *totalRequests)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Created:          %d\n", success)
	fmt.Printf("Out of stock:     %d\n", stockoutCount.Load())
	fmt.Printf("Other failures:   %d\n", failCount.Load())
	fmt.Printf("Final Stock:      %d\n", finalStock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == expected && finalStock == initialStock-success {
		fmt.Printf("PASS: %d orders created, stock consistent\n", success)
	} else {
		fmt.Printf("FAIL: expected %d orders and final stock %d, got %d and %d\n",
			expected, initialStock-expected, success, finalStock)
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func login(ctx context.Context, client *http.Client, baseURL, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	status, err := call(ctx, client, http.MethodPost, baseURL+"/api/auth/login", "", nil, body, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login returned status %d", status)
	}
	return out.Token, nil
}

func productStock(ctx context.Context, client *http.Client, baseURL, token string, productID int64) (int, error) {
	var out struct {
		StockQuantity *int `json:"stock_quantity"`
	}
	url := fmt.Sprintf("%s/api/products/%d", baseURL, productID)
	status, err := call(ctx, client, http.MethodGet, url, token, nil, nil, &out)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK || out.StockQuantity == nil {
		return 0, fmt.Errorf("product lookup returned status %d", status)
	}
	return *out.StockQuantity, nil
}

func placeOrder(ctx context.Context, client *http.Client, baseURL, token string, customerID, productID int64) (int, error) {
	body := map[string]any{
		"customer_id": customerID,
		"items":       []map[string]any{{"product_id": productID, "quantity": 1}},
		"notes":       "stress test",
	}
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	return call(ctx, client, http.MethodPost, baseURL+"/api/orders", token, headers, body, nil)
}

func call(ctx context.Context, client *http.Client, method, url, token string, headers map[string]string, body, data any) (int, error) {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &payload)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return resp.StatusCode, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.StatusCode, nil
}
