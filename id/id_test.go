package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/warrant/id"
)

var entityIDs = []struct {
	name    string
	newFn   func() id.ID
	parseFn func(string) (id.ID, error)
	prefix  string
}{
	{"ModuleID", id.NewModuleID, id.ParseModuleID, "mod_"},
	{"ActionID", id.NewActionID, id.ParseActionID, "act_"},
	{"PermissionID", id.NewPermissionID, id.ParsePermissionID, "perm_"},
	{"RoleID", id.NewRoleID, id.ParseRoleID, "role_"},
	{"UserRoleID", id.NewUserRoleID, id.ParseUserRoleID, "urole_"},
	{"OverrideID", id.NewOverrideID, id.ParseOverrideID, "uperm_"},
}

func TestConstructorsAndParsers(t *testing.T) {
	for _, tt := range entityIDs {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			if !strings.HasPrefix(original.String(), tt.prefix) {
				t.Fatalf("expected prefix %q, got %q", tt.prefix, original.String())
			}
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed != original {
				t.Errorf("round-trip mismatch: %q != %q", parsed, original)
			}
		})
	}
}

func TestParsersRejectOtherPrefixes(t *testing.T) {
	for i, tt := range entityIDs {
		other := entityIDs[(i+1)%len(entityIDs)]
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(other.newFn().String()); err == nil {
				t.Errorf("%s accepted a %s", tt.name, other.name)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
	if _, err := id.ParseRoleID("role"); err == nil {
		t.Error("expected error for a bare prefix")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Errorf("expected empty string and prefix, got %q / %q", i.String(), i.Prefix())
	}
}

func TestTextRoundTrip(t *testing.T) {
	original := id.NewOverrideID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if restored != original {
		t.Errorf("mismatch: %q != %q", restored, original)
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil || !empty.IsNil() {
		t.Fatalf("expected nil ID from empty text, got %q (%v)", empty, err)
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewUserRoleID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var fromString, fromBytes id.ID
	if err := fromString.Scan(val); err != nil {
		t.Fatalf("Scan(string) failed: %v", err)
	}
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan([]byte) failed: %v", err)
	}
	if fromString != original || fromBytes != original {
		t.Errorf("scan mismatch: %q / %q != %q", fromString, fromBytes, original)
	}

	var nilID id.ID
	if v, _ := nilID.Value(); v != nil {
		t.Errorf("expected NULL value for nil ID, got %v", v)
	}
	if err := fromString.Scan(nil); err != nil || !fromString.IsNil() {
		t.Error("expected nil after scan of NULL")
	}
	if err := fromString.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewPermissionID()
	b := id.NewPermissionID()
	if a == b {
		t.Errorf("two consecutive NewPermissionID() calls returned the same ID: %q", a)
	}
}
