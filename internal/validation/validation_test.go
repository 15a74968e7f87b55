package validation

import "testing"

func TestIsValidCardNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{name: "valid visa test number", number: "4242424242424242", want: true},
		{name: "valid with spaces", number: "4242 4242 4242 4242", want: true},
		{name: "valid with dashes", number: "4242-4242-4242-4242", want: true},
		{name: "luhn failure", number: "4242424242424241", want: false},
		{name: "too short", number: "42424242424", want: false},
		{name: "too long", number: "42424242424242424242", want: false},
		{name: "non-digit", number: "4242x24242424242", want: false},
		{name: "empty", number: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidCardNumber(tt.number); got != tt.want {
				t.Errorf("IsValidCardNumber(%q) = %v, want %v", tt.number, got, tt.want)
			}
		})
	}
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"a@b.co", true},
		{"no-at-sign", false},
		{"@example.com", false},
		{"user@", false},
		{"user@nodot", false},
		{"user name@example.com", false},
	}

	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+79991234567", true},
		{"9991234567", true},
		{"123", false},
		{"+1234567890123456", false},
		{"79991abc567", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidPhone(tt.phone); got != tt.want {
			t.Errorf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.want)
		}
	}
}
