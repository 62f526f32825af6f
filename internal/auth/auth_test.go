package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func recordDeny(w http.ResponseWriter, _ *http.Request, status int, err error) {
	http.Error(w, err.Error(), status)
}

func TestValidator(t *testing.T) {
	v := NewValidator(secret)

	token, err := Sign(secret, Identity{Email: "Ann@Example.com", Role: domain.RoleSeller}, time.Minute)
	require.NoError(t, err)
	id, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{Email: "ann@example.com", Role: domain.RoleSeller}, id)

	expired, err := Sign(secret, Identity{Email: "a@b.io", Role: domain.RoleBuyer}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := Sign("other-secret", Identity{Email: "a@b.io", Role: domain.RoleBuyer}, time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	badRole, err := Sign(secret, Identity{Email: "a@b.io", Role: "root"}, time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(badRole)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a@b.io"},
		Role:             "buyer",
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = v.Validate(noExpiry)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	var seen Identity
	h := Middleware(NewValidator(secret), recordDeny)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := Sign(secret, Identity{Email: "a@b.io", Role: domain.RoleBuyer}, time.Minute)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "a@b.io", seen.Email)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireRole(recordDeny, domain.RoleSeller)(ok)

	tests := []struct {
		name string
		id   *Identity
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"buyer", &Identity{Email: "b@x.io", Role: domain.RoleBuyer}, http.StatusForbidden},
		{"seller", &Identity{Email: "s@x.io", Role: domain.RoleSeller}, http.StatusNoContent},
		{"admin", &Identity{Email: "a@x.io", Role: domain.RoleAdmin}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.id != nil {
				req = req.WithContext(WithIdentity(req.Context(), *tt.id))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
