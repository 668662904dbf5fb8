package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/internal/routing"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/authz"
)

// PrincipalClaims is the bearer token payload. The subject becomes the
// settlement's generated_by.
type PrincipalClaims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenVerifier(secret string, issuer string) (*TokenVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("server: JWT_SECRET is required")
	}
	return &TokenVerifier{secret: []byte(secret), issuer: strings.TrimSpace(issuer), now: time.Now}, nil
}

func (v *TokenVerifier) Verify(raw string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &PrincipalClaims{}
	tok, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !tok.Valid {
		return Principal{}, errors.New("server: invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, errors.New("server: token subject missing")
	}
	return Principal{
		ID:       strings.TrimSpace(claims.Subject),
		TenantID: strings.TrimSpace(claims.TenantID),
		RoleSlug: strings.TrimSpace(claims.Role),
		Email:    strings.TrimSpace(claims.Email),
	}, nil
}

// IssueToken signs an HS256 token for p. Used by dbtool and tests.
func (v *TokenVerifier) IssueToken(p Principal, ttl time.Duration) (string, error) {
	now := v.now()
	claims := &PrincipalClaims{
		TenantID: p.TenantID,
		Role:     p.RoleSlug,
		Email:    p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type PrincipalVerifier interface {
	Verify(raw string) (Principal, error)
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// withTenantAndPrincipal resolves the tenant from the host and, for API
// routes, the principal from the bearer token. A token minted for another
// tenant is rejected.
func withTenantAndPrincipal(tenants TenancyResolver, verifier PrincipalVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.Classify(path)
		if rc == routing.RouteClassOps {
			next.ServeHTTP(w, r)
			return
		}

		t, ok, err := tenants.ResolveTenant(r.Context(), effectiveHost(r))
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "tenant_resolve_error", "tenant resolve error")
			return
		}
		if !ok {
			routing.WriteError(w, r, rc, http.StatusNotFound, "tenant_not_found", "tenant not found")
			return
		}
		r = r.WithContext(withTenant(r.Context(), t))

		if rc != routing.RouteClassInternalAPI {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := bearerToken(r)
		if !ok {
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		p, err := verifier.Verify(raw)
		if err != nil || !strings.EqualFold(p.TenantID, t.ID) {
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		if p.RoleSlug == "" {
			p.RoleSlug = authz.RoleAnonymous
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}
