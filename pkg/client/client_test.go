package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoginAttachesToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			json.NewEncoder(w).Encode(map[string]string{"token": "session-token"}) //nolint:errcheck
		case "/api/v1/tenants":
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(map[string]any{"tenants": []Tenant{{ID: "t1", Name: "Acme"}}}) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	tok, err := c.Login(context.Background(), "op@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok != "session-token" {
		t.Fatalf("token = %q", tok)
	}

	tenants, err := c.ListTenants(context.Background())
	if err != nil {
		t.Fatalf("ListTenants: %v", err)
	}
	if len(tenants) != 1 || tenants[0].Name != "Acme" {
		t.Fatalf("tenants = %+v", tenants)
	}
	if gotAuth != "Bearer session-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestCreateReportSendsForce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("force") != "true" {
			t.Errorf("force = %q, want true", r.URL.Query().Get("force"))
		}
		var body map[string]int
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["quarter"] != 2 || body["year"] != 2025 {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"report": Report{ID: "r1", Quarter: 2, Year: 2025, Status: "new"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	rep, err := c.CreateReport(context.Background(), "t1", 2, 2025, true)
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if rep.ID != "r1" || rep.Status != "new" {
		t.Fatalf("report = %+v", rep)
	}
}

func TestErrorStatusesSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/reports/missing/transition":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":"report already exists for period"}`)) //nolint:errcheck
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))

	if _, err := c.Transition(context.Background(), "missing", "reviewed"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, err := c.CreateReport(context.Background(), "t1", 1, 2025, false); err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("err = %v, want 409 surfaced", err)
	}
}
