package common

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), "u-1", "staff")
	id, ok := UserID(ctx)
	if !ok || id != "u-1" {
		t.Fatalf("UserID = %q, %v", id, ok)
	}
	role, ok := Role(ctx)
	if !ok || role != "staff" {
		t.Fatalf("Role = %q, %v", role, ok)
	}
	if _, ok := UserID(context.Background()); ok {
		t.Fatal("expected no identity on empty context")
	}
}

func TestParsePaginationClamps(t *testing.T) {
	r := httptest.NewRequest("GET", "/orders?page=3&limit=500", nil)
	page, perPage := ParsePagination(r, 20)
	if page != 3 {
		t.Fatalf("page = %d", page)
	}
	if perPage != maxPerPage {
		t.Fatalf("perPage = %d, want %d", perPage, maxPerPage)
	}
	if got := Offset(page, perPage); got != 200 {
		t.Fatalf("Offset = %d", got)
	}
}

func TestParsePaginationDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/orders?page=-1&limit=abc", nil)
	page, perPage := ParsePagination(r, 20)
	if page != 1 || perPage != 20 {
		t.Fatalf("got page=%d perPage=%d", page, perPage)
	}
}
