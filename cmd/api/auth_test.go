package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"arogya/internal/store"
)

func TestRegisterUser(t *testing.T) {
	t.Parallel()

	app, _ := newTestApplication(t)
	mux := app.mount()

	rr, env := doRequest(t, mux, http.MethodPost, "/v1/authentication/user", "", map[string]any{
		"name":     "Sita Sharma",
		"email":    "sita@example.com",
		"phone":    "9800000000",
		"password": "secret123",
		"role":     "patient",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var user store.User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.ID == 0 {
		t.Errorf("expected an assigned user id")
	}

	// same email again
	rr, _ = doRequest(t, mux, http.MethodPost, "/v1/authentication/user", "", map[string]any{
		"name":     "Sita Again",
		"email":    "sita@example.com",
		"phone":    "9811111111",
		"password": "secret123",
		"role":     "patient",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("duplicate email: expected 400, got %d", rr.Code)
	}
}

func TestRegisterUserValidation(t *testing.T) {
	t.Parallel()

	app, _ := newTestApplication(t)
	mux := app.mount()

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{
			name: "doctor without specialization",
			payload: map[string]any{
				"name": "Dr. Bista", "email": "bista@example.com", "phone": "9800000001",
				"password": "secret123", "role": "doctor",
			},
		},
		{
			name: "admin role not self-assignable",
			payload: map[string]any{
				"name": "Mallory", "email": "mallory@example.com", "phone": "9800000002",
				"password": "secret123", "role": "admin",
			},
		},
		{
			name: "short password",
			payload: map[string]any{
				"name": "Sita", "email": "sita2@example.com", "phone": "9800000003",
				"password": "abc", "role": "patient",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr, _ := doRequest(t, mux, http.MethodPost, "/v1/authentication/user", "", tc.payload)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestCreateToken(t *testing.T) {
	t.Parallel()

	app, stores := newTestApplication(t)
	seedUser(t, stores.users, "Sita Sharma", "sita@example.com", store.RolePatient)

	mux := app.mount()

	rr, env := doRequest(t, mux, http.MethodPost, "/v1/authentication/token", "", map[string]any{
		"email":    "sita@example.com",
		"password": "secret123",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var tokens TokenResponse
	if err := json.Unmarshal(env.Data, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}
	if tokens.Role != store.RolePatient {
		t.Errorf("role = %s, want patient", tokens.Role)
	}

	// the access token must pass the auth middleware
	rr, _ = doRequest(t, mux, http.MethodGet, "/v1/appointments/", "Bearer "+tokens.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("issued token rejected by middleware: %d", rr.Code)
	}

	// wrong password
	rr, _ = doRequest(t, mux, http.MethodPost, "/v1/authentication/token", "", map[string]any{
		"email":    "sita@example.com",
		"password": "wrongpass",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", rr.Code)
	}

	// unknown account
	rr, _ = doRequest(t, mux, http.MethodPost, "/v1/authentication/token", "", map[string]any{
		"email":    "nobody@example.com",
		"password": "secret123",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unknown email: expected 401, got %d", rr.Code)
	}
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	app, stores := newTestApplication(t)
	user := seedUser(t, stores.users, "Sita Sharma", "sita@example.com", store.RolePatient)

	_, refreshToken, err := app.authenticator.GenerateTokens(user.ID, user.Role)
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mux := app.mount()

	rr, env := doRequest(t, mux, http.MethodPost, "/v1/authentication/refresh", "", map[string]any{
		"refresh_token": refreshToken,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var tokens TokenResponse
	if err := json.Unmarshal(env.Data, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	if tokens.AccessToken == "" {
		t.Errorf("expected a fresh access token")
	}

	// an access token is signed with a different secret and must be rejected
	rr, _ = doRequest(t, mux, http.MethodPost, "/v1/authentication/refresh", "", map[string]any{
		"refresh_token": tokens.AccessToken,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("access token as refresh: expected 401, got %d", rr.Code)
	}
}
