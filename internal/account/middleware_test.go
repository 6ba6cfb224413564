package account

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auroramart/backend-mart/internal/common"
)

func TestIdentityInjectsContext(t *testing.T) {
	var gotID, gotRole string
	h := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = common.UserID(r.Context())
		gotRole, _ = common.Role(r.Context())
	}))
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(HeaderUserID, "u-1")
	r.Header.Set(HeaderRole, "staff")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if gotID != "u-1" || gotRole != "staff" {
		t.Fatalf("identity = %q/%q", gotID, gotRole)
	}
}

func TestIdentityUnknownRoleDefaultsToCustomer(t *testing.T) {
	var gotRole string
	h := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole, _ = common.Role(r.Context())
	}))
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(HeaderUserID, "u-1")
	r.Header.Set(HeaderRole, "superuser")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if gotRole != string(RoleCustomer) {
		t.Fatalf("role = %q", gotRole)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role string
		min  Role
		want int
	}{
		{"customer", RoleStaff, http.StatusForbidden},
		{"staff", RoleStaff, http.StatusOK},
		{"admin", RoleStaff, http.StatusOK},
		{"staff", RoleAdmin, http.StatusForbidden},
	}
	for _, tc := range cases {
		h := RequireRole(tc.min)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		r := httptest.NewRequest("GET", "/", nil)
		r = r.WithContext(common.WithIdentity(r.Context(), "u-1", tc.role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code != tc.want {
			t.Fatalf("role %s min %s: status %d, want %d", tc.role, tc.min, rec.Code, tc.want)
		}
	}
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	h := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
