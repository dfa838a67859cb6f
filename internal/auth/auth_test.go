package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("0123456789abcdef0123456789abcdef", "pantry")
	tok, err := v.Issue(Staff{ID: "staff-1", Email: "lead@pantry.org"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	staff, err := v.Verify("Bearer " + tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if staff.ID != "staff-1" || staff.Email != "lead@pantry.org" {
		t.Errorf("staff = %+v", staff)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("0123456789abcdef0123456789abcdef", "pantry")
	other := NewVerifier("another-secret-another-secret-xx", "pantry")
	foreign, _ := other.Issue(Staff{ID: "x"}, time.Hour)
	expired, _ := v.Issue(Staff{ID: "x"}, -time.Minute)
	wrongIssuer, _ := NewVerifier("0123456789abcdef0123456789abcdef", "elsewhere").Issue(Staff{ID: "x"}, time.Hour)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"empty", "", ErrMissingToken},
		{"no scheme", foreign, ErrInvalidToken},
		{"foreign signature", "Bearer " + foreign, ErrInvalidToken},
		{"expired", "Bearer " + expired, ErrInvalidToken},
		{"wrong issuer", "Bearer " + wrongIssuer, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(tt.header); !errors.Is(err, tt.want) {
				t.Errorf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStaticProvider(t *testing.T) {
	cred, err := NewStaticProvider("pat123").Credential(context.Background(), Staff{ID: "s"})
	if err != nil || cred.Header() != "Bearer pat123" {
		t.Errorf("Credential() = %+v, %v", cred, err)
	}
	if _, err := NewStaticProvider("").Credential(context.Background(), Staff{}); !errors.Is(err, ErrNoCredential) {
		t.Errorf("empty provider error = %v", err)
	}
}
