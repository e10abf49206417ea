package permission

import "testing"

func TestKey(t *testing.T) {
	if got := Key("staff", "edit"); got != "staff:edit" {
		t.Fatalf("expected staff:edit, got %s", got)
	}
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key    string
		module string
		action string
		ok     bool
	}{
		{"dashboard:view", "dashboard", "view", true},
		{"billing:admin", "billing", "admin", true},
		{"dashboard", "", "", false},
		{":view", "", "", false},
		{"dashboard:", "", "", false},
		{"a:b:c", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		m, a, ok := SplitKey(tt.key)
		if ok != tt.ok || m != tt.module || a != tt.action {
			t.Errorf("SplitKey(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.key, m, a, ok, tt.module, tt.action, tt.ok)
		}
	}
}
