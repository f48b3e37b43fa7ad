package policy

import "testing"

func TestAuthorized(t *testing.T) {
	p := Parse("100, 200,300", "", false)
	tests := []struct {
		sender string
		want   bool
	}{
		{"100", true},
		{"200", true},
		{"300", true},
		{"400", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := p.Authorized(tt.sender); got != tt.want {
			t.Errorf("Authorized(%q) = %v, want %v", tt.sender, got, tt.want)
		}
	}
}

func TestOpenAccessAuthorizesEveryone(t *testing.T) {
	p := Parse("", "", true)
	if !p.Authorized("anyone") {
		t.Fatalf("Authorized(%q) = false with open access", "anyone")
	}
	if p.WriteAllowed("anyone") {
		t.Fatalf("WriteAllowed(%q) = true, open access must not grant writes", "anyone")
	}
}

func TestWriteAllowedRequiresExplicitEntry(t *testing.T) {
	p := Parse("100,200", "200", false)
	if p.WriteAllowed("100") {
		t.Fatalf("WriteAllowed(%q) = true, want false", "100")
	}
	if !p.WriteAllowed("200") {
		t.Fatalf("WriteAllowed(%q) = false, want true", "200")
	}
}

func TestParseIgnoresBlankEntries(t *testing.T) {
	p := Parse("100,, ,200,", "", false)
	if got := p.AllowedCount(); got != 2 {
		t.Fatalf("AllowedCount() = %d, want 2", got)
	}
}
