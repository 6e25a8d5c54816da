package ledger

import (
	"context"
	"net/http"
	"testing"
)

func TestResolverFindOrCreateCaches(t *testing.T) {
	finds, creates := 0, 0
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/api/v1/vendors":
				finds++
				return jsonResponse(http.StatusOK, envelope([]Entity{})), nil
			case r.Method == http.MethodPost && r.URL.Path == "/api/v1/vendors":
				creates++
				return jsonResponse(http.StatusOK, envelope(Entity{ID: "v1", Name: "The Home Depot"})), nil
			default:
				t.Fatalf("%s %s", r.Method, r.URL.Path)
				return nil, nil
			}
		}),
	}

	resolver := NewResolver(client)
	for i := 0; i < 3; i++ {
		vendor, err := resolver.Vendor(context.Background(), "The Home Depot")
		if err != nil {
			t.Fatal(err)
		}
		if vendor.ID != "v1" {
			t.Fatalf("vendor=%+v", vendor)
		}
	}
	if finds != 1 || creates != 1 {
		t.Fatalf("finds=%d creates=%d", finds, creates)
	}
}

func TestResolverNormalizedNameMatch(t *testing.T) {
	creates := 0
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/api/v1/vendors":
				return jsonResponse(http.StatusOK, envelope([]Entity{{ID: "v2", Name: "LOWES"}})), nil
			case r.Method == http.MethodPost:
				creates++
				return jsonResponse(http.StatusOK, envelope(Entity{ID: "v9", Name: "Lowe's"})), nil
			default:
				t.Fatalf("%s %s", r.Method, r.URL.Path)
				return nil, nil
			}
		}),
	}

	vendor, err := NewResolver(client).Vendor(context.Background(), "Lowe's")
	if err != nil {
		t.Fatal(err)
	}
	if vendor.ID != "v2" || creates != 0 {
		t.Fatalf("vendor=%+v creates=%d", vendor, creates)
	}
}

func TestResolverAccountFallback(t *testing.T) {
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/api/v1/accounts" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			return jsonResponse(http.StatusOK, envelope([]Entity{
				{ID: "a1", Name: "Office Expenses", Type: "expense"},
				{ID: "a2", Name: "Job Materials", Type: "expense"},
			})), nil
		}),
	}

	resolver := NewResolver(client)
	ctx := context.Background()

	named, err := resolver.Account(ctx, "Job Materials", "Office Expenses")
	if err != nil {
		t.Fatal(err)
	}
	if named.ID != "a2" {
		t.Fatalf("account=%+v", named)
	}

	fallback, err := resolver.Account(ctx, "No Such Category", "Office Expenses")
	if err != nil {
		t.Fatal(err)
	}
	if fallback.ID != "a1" {
		t.Fatalf("account=%+v", fallback)
	}

	// Neither name matches: the keyword scan picks the job-cost account
	// over the first listed one.
	keyword, err := resolver.Account(ctx, "No Such Category", "Also Missing")
	if err != nil {
		t.Fatal(err)
	}
	if keyword.ID != "a2" {
		t.Fatalf("account=%+v", keyword)
	}
}

func TestResolverAccountKeywordBeatsFirstListed(t *testing.T) {
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, envelope([]Entity{
				{ID: "a1", Name: "Office Snacks", Type: "expense"},
				{ID: "a2", Name: "Job Materials Expense", Type: "expense"},
			})), nil
		}),
	}

	account, err := NewResolver(client).Account(context.Background(), "Job Supplies", "Also Missing")
	if err != nil {
		t.Fatal(err)
	}
	if account.ID != "a2" {
		t.Fatalf("account=%+v", account)
	}
}

func TestResolverAccountFirstWhenNoKeyword(t *testing.T) {
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, envelope([]Entity{
				{ID: "a1", Name: "Office Snacks", Type: "expense"},
				{ID: "a2", Name: "Travel", Type: "expense"},
			})), nil
		}),
	}

	account, err := NewResolver(client).Account(context.Background(), "No Such Category", "Also Missing")
	if err != nil {
		t.Fatal(err)
	}
	if account.ID != "a1" {
		t.Fatalf("account=%+v", account)
	}
}
