package idempotency

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{
			name:    "valid UUID",
			key:     "550e8400-e29b-41d4-a716-446655440000",
			wantErr: nil,
		},
		{
			name:    "valid alphanumeric",
			key:     "abc123-def456_ghi789",
			wantErr: nil,
		},
		{
			name:    "empty key",
			key:     "",
			wantErr: ErrKeyRequired,
		},
		{
			name:    "too long",
			key:     strings.Repeat("a", 256),
			wantErr: ErrKeyTooLong,
		},
		{
			name:    "invalid characters - spaces",
			key:     "abc 123",
			wantErr: ErrKeyInvalid,
		},
		{
			name:    "invalid characters - special chars",
			key:     "abc@123",
			wantErr: ErrKeyInvalid,
		},
		{
			name:    "exactly 255 chars",
			key:     strings.Repeat("a", 255),
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if err != tt.wantErr {
				t.Errorf("ValidateKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeFingerprint(t *testing.T) {
	body := []byte(`{"stockRecordId":"SR-001","quantity":4}`)

	got := ComputeFingerprint(body)
	if len(got) != 64 {
		t.Errorf("ComputeFingerprint() length = %d, want 64", len(got))
	}

	// Deterministic for identical input.
	if got != ComputeFingerprint(body) {
		t.Error("ComputeFingerprint() not deterministic")
	}

	// Different body, different fingerprint.
	other := ComputeFingerprint([]byte(`{"stockRecordId":"SR-001","quantity":9}`))
	if got == other {
		t.Error("ComputeFingerprint() collided for different inputs")
	}

	// SHA256 of the empty string is a known constant.
	empty := ComputeFingerprint(nil)
	if empty != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("ComputeFingerprint(nil) = %s", empty)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{
			name: "already normalized",
			key:  "abc123",
			want: "abc123",
		},
		{
			name: "leading spaces",
			key:  "  abc123",
			want: "abc123",
		},
		{
			name: "trailing spaces",
			key:  "abc123  ",
			want: "abc123",
		},
		{
			name: "both sides",
			key:  "  abc123  ",
			want: "abc123",
		},
		{
			name: "tabs",
			key:  "\tabc123\t",
			want: "abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeKey(tt.key)
			if got != tt.want {
				t.Errorf("NormalizeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}
