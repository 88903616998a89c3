package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"user@example.com", true},
		{"user.name@example.com", true},
		{"user+tag@example.co.uk", true},
		{"user_name@sub.example.com", true},
		{"", false},
		{"not-an-email", false},
		{"@example.com", false},
		{"user@", false},
		{"user@.com", false},
		{"user @example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := IsValidEmail(tt.email); got != tt.valid {
				t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.valid)
			}
		})
	}
}

func TestIsValidUUID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"123e4567-e89b-12d3-a456-426614174000", true},
		{"00000000-0000-0000-0000-000000000000", true},
		{"ABCDEF01-2345-6789-abcd-ef0123456789", true},
		{"", false},
		{"not-a-uuid", false},
		{"123e4567-e89b-12d3-a456", false},
		{"123e4567e89b12d3a456426614174000", false},
		{"123e4567-e89b-12d3-a456-42661417400g", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := IsValidUUID(tt.id); got != tt.valid {
				t.Errorf("IsValidUUID(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}

func TestIsValidJoinCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"ABC234", true},
		{"ZZZZZZ", true},
		{"abc234", false}, // lowercase
		{"AB12", false},   // too short
		{"ABCDEFG", false},
		{"ABC0DE", false}, // ambiguous character
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := IsValidJoinCode(tt.code); got != tt.valid {
				t.Errorf("IsValidJoinCode(%q) = %v, want %v", tt.code, got, tt.valid)
			}
		})
	}
}

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"valid_password", "Passw0rd!", true},
		{"too_short", "Pw0!", false},
		{"no_uppercase", "passw0rd!", false},
		{"no_lowercase", "PASSW0RD!", false},
		{"no_number", "Password!", false},
		{"no_special", "Passw0rd1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := IsValidPassword(tt.password)
			if got != tt.valid {
				t.Errorf("IsValidPassword(%q) = %v, want %v", tt.password, got, tt.valid)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello world", "hello world"},
		{"null_bytes", "hello\x00world", "helloworld"},
		{"keeps_newlines", "line1\nline2", "line1\nline2"},
		{"keeps_tabs", "col1\tcol2", "col1\tcol2"},
		{"strips_control", "bell\x07char", "bellchar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.input); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
