package marketplace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_FetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("categories") != "tools,garden" {
			t.Errorf("Expected categories filter, got %q", q.Get("categories"))
		}
		if q.Get("min_discount") != "20" {
			t.Errorf("Expected min_discount 20, got %q", q.Get("min_discount"))
		}
		if q.Get("min_reviews") != "10" {
			t.Errorf("Expected min_reviews 10, got %q", q.Get("min_reviews"))
		}
		if q.Get("has_reviews") != "true" {
			t.Errorf("Expected has_reviews flag, got %q", q.Get("has_reviews"))
		}
		if q.Get("page") != "2" {
			t.Errorf("Expected page 2, got %q", q.Get("page"))
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected bearer auth header, got %q", r.Header.Get("Authorization"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"listings":[{"sku":"SKU-1","title":"Drill","price":89.99,"original_price":120}],"has_more":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "TestAgent/1.0", 5*time.Second)

	query := Query{Categories: []string{"tools", "garden"}, MinDiscount: 20, MinReviews: 10}
	page, err := client.FetchPage(context.Background(), query, 2)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	if len(page.Listings) != 1 {
		t.Fatalf("Expected 1 listing, got %d", len(page.Listings))
	}
	if page.Listings[0].SKU != "SKU-1" {
		t.Errorf("Expected SKU-1, got %s", page.Listings[0].SKU)
	}
	if !page.HasMore {
		t.Error("Expected has_more to be true")
	}
}

func TestClient_FetchPage_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "TestAgent/1.0", 5*time.Second)

	if _, err := client.FetchPage(context.Background(), Query{}, 1); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestClient_FetchPage_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "TestAgent/1.0", 5*time.Second)

	if _, err := client.FetchPage(context.Background(), Query{}, 1); err == nil {
		t.Error("Expected error for malformed response body")
	}
}
