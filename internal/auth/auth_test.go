package auth

import (
	"errors"
	"testing"

	"github.com/xinggonglie/lobe-chat-2/internal/config"
)

const testSecret = "test-secret"

func TestSignParseRoundtrip(t *testing.T) {
	original := Payload{
		AccessCode:   "open-sesame",
		APIKey:       "sk-user",
		Endpoint:     "https://proxy.example.com/v1",
		APIVersion:   "2024-02-01",
		UseAlternate: true,
	}

	token, err := Sign(original, testSecret)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parsed, err := Parse(token, testSecret)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.AccessCode != original.AccessCode {
		t.Errorf("AccessCode = %q, want %q", parsed.AccessCode, original.AccessCode)
	}
	if parsed.APIKey != original.APIKey {
		t.Errorf("APIKey = %q, want %q", parsed.APIKey, original.APIKey)
	}
	if parsed.Endpoint != original.Endpoint {
		t.Errorf("Endpoint = %q, want %q", parsed.Endpoint, original.Endpoint)
	}
	if parsed.APIVersion != original.APIVersion {
		t.Errorf("APIVersion = %q, want %q", parsed.APIVersion, original.APIVersion)
	}
	if !parsed.UseAlternate {
		t.Error("UseAlternate lost in roundtrip")
	}
}

func TestParseWrongSecret(t *testing.T) {
	token, err := Sign(Payload{AccessCode: "x"}, testSecret)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := Parse(token, "other-secret"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Parse with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := Parse("not-a-jwt", testSecret); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Parse garbage = %v, want ErrInvalidToken", err)
	}
}

func TestFromHeader(t *testing.T) {
	token, err := Sign(Payload{AccessCode: "x"}, testSecret)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"missing header", "", ErrMissingAuthHeader},
		{"not bearer", "Basic abc", ErrMissingAuthHeader},
		{"valid bearer", "Bearer " + token, nil},
		{"bearer garbage", "Bearer junk", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromHeader(tt.header, testSecret)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FromHeader() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	gated := config.Config{Auth: config.AuthConfig{GateKeeper: true, AccessCode: "secret-code"}}
	open := config.Config{Auth: config.AuthConfig{GateKeeper: false}}

	tests := []struct {
		name    string
		payload *Payload
		cfg     config.Config
		wantErr error
	}{
		{"gating disabled", nil, open, nil},
		{"gating disabled with payload", &Payload{}, open, nil},
		{"matching access code", &Payload{AccessCode: "secret-code"}, gated, nil},
		{"user api key passes the gate", &Payload{APIKey: "sk-user"}, gated, nil},
		{"wrong code and no key", &Payload{AccessCode: "wrong"}, gated, ErrUnauthorized},
		{"empty payload", &Payload{}, gated, ErrUnauthorized},
		{"nil payload", nil, gated, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Check(tt.payload, tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
