package api

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRegisterHandler(t *testing.T) {
	s := newStubServices()
	calls := 0
	s.auth.register = func(name, email, password string, role domain.Role) (*domain.User, error) {
		calls++
		if email == "taken@example.com" {
			return nil, service.ErrUserAlreadyExists
		}
		return &domain.User{ID: primitive.NewObjectID(), Name: name, Email: email, PasswordHash: "hash", Role: role, CreatedAt: time.Now()}, nil
	}
	r := s.router()

	body := map[string]string{"name": "Lan", "email": "lan@example.com", "password": "correct horse", "role": "member"}
	w := do(t, r, http.MethodPost, "/api/v1/auth/register", "", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "hash") {
		t.Errorf("response leaks the password hash: %s", w.Body.String())
	}

	body["email"] = "taken@example.com"
	if w := do(t, r, http.MethodPost, "/api/v1/auth/register", "", body); w.Code != http.StatusConflict || errorCode(t, w) != codeUserExists {
		t.Errorf("duplicate: %d %s", w.Code, w.Body.String())
	}

	before := calls
	for name, bad := range map[string]map[string]string{
		"admin role":     {"name": "Eve", "email": "eve@example.com", "password": "correct horse", "role": "admin"},
		"long password":  {"name": "Eve", "email": "eve@example.com", "password": strings.Repeat("p", 73), "role": "member"},
		"short password": {"name": "Eve", "email": "eve@example.com", "password": "short", "role": "member"},
	} {
		if w := do(t, r, http.MethodPost, "/api/v1/auth/register", "", bad); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, w.Code)
		}
	}
	if calls != before {
		t.Error("invalid registrations reached the service")
	}
}
