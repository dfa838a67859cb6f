package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	ErrMissingToken = errors.New("authorization header missing")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoCredential = errors.New("no store credential for staff member")
)

// Credential is the bearer token attached to every call against the record
// store and the workflow service. It is passed explicitly, never read from
// package state.
type Credential struct {
	Token string
}

func (c Credential) Empty() bool {
	return c.Token == ""
}

func (c Credential) Header() string {
	return "Bearer " + c.Token
}

// Staff identifies the dashboard user behind a request.
type Staff struct {
	ID    string
	Email string
}

// Provider hands out the store credential for an authenticated staff member.
type Provider interface {
	Credential(ctx context.Context, staff Staff) (Credential, error)
}

type staticProvider struct {
	cred Credential
}

// NewStaticProvider returns a Provider that issues the same API token to
// every staff member.
func NewStaticProvider(token string) Provider {
	return &staticProvider{cred: Credential{Token: token}}
}

func (p *staticProvider) Credential(_ context.Context, _ Staff) (Credential, error) {
	if p.cred.Empty() {
		return Credential{}, ErrNoCredential
	}
	return p.cred, nil
}

type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify checks an "Authorization: Bearer <jwt>" header value.
func (v *Verifier) Verify(header string) (Staff, error) {
	if header == "" {
		return Staff{}, ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return Staff{}, ErrInvalidToken
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Staff{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Staff{}, ErrInvalidToken
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return Staff{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Staff{}, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	return Staff{ID: sub, Email: email}, nil
}

// Issue signs a token for staff. Used by tooling and tests; production tokens
// come from the login service.
func (v *Verifier) Issue(staff Staff, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   staff.ID,
		"email": staff.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Keys under which the auth middleware stores the request's staff member and
// store credential.
const (
	StaffKey      = "auth.staff"
	CredentialKey = "auth.credential"
)
