package enums

import "testing"

func TestParseBusinessStatus(t *testing.T) {
	status, err := ParseBusinessStatus("approved")
	if err != nil || status != BusinessStatusApproved {
		t.Fatalf("expected approved, got %q err=%v", status, err)
	}
	if _, err := ParseBusinessStatus("APPROVED"); err == nil {
		t.Fatal("expected case-sensitive parse to fail")
	}
	if BusinessStatusPending.IsPublic() || BusinessStatusRejected.IsPublic() {
		t.Fatal("only approved listings are public")
	}
}

func TestParsePendingEditStatus(t *testing.T) {
	status, err := ParsePendingEditStatus("REJECTED")
	if err != nil || status != PendingEditStatusRejected {
		t.Fatalf("expected REJECTED, got %q err=%v", status, err)
	}
	if _, err := ParsePendingEditStatus("APPROVED"); err == nil {
		t.Fatal("approved is not a persisted pending edit status")
	}
}

func TestParseSortOptionDefaults(t *testing.T) {
	opt, err := ParseSortOption("")
	if err != nil || opt != SortRecommended {
		t.Fatalf("expected recommended default, got %q err=%v", opt, err)
	}
	opt, err = ParseSortOption(" Alphabetical ")
	if err != nil || opt != SortAlphabetical {
		t.Fatalf("expected alphabetical, got %q err=%v", opt, err)
	}
	if _, err := ParseSortOption("price"); err == nil {
		t.Fatal("expected invalid sort option error")
	}
}

func TestParseLocale(t *testing.T) {
	if l, _ := ParseLocale(""); l != LocaleHebrew {
		t.Fatalf("expected hebrew default, got %q", l)
	}
	if l, _ := ParseLocale("RU"); l != LocaleRussian {
		t.Fatalf("expected russian, got %q", l)
	}
	if _, err := ParseLocale("en"); err == nil {
		t.Fatal("expected unsupported locale error")
	}
}

func TestParseActorRole(t *testing.T) {
	if _, err := ParseActorRole("owner"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseActorRole("buyer"); err == nil {
		t.Fatal("expected invalid role")
	}
}
