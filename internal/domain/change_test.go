package domain

import (
	"strings"
	"testing"
	"time"
)

func TestChangeTypeValid(t *testing.T) {
	valid := []ChangeType{
		ChangeCreatePortfolio, ChangeUpdatePortfolio, ChangeDeletePortfolio,
		ChangeCreateAsset, ChangeUpdateAsset, ChangeDeleteAsset,
		ChangeUpdateProfile,
	}
	for _, ct := range valid {
		if !ct.Valid() {
			t.Errorf("%s should be valid", ct)
		}
	}

	for _, ct := range []ChangeType{"", "CREATE_ORDER", "create_portfolio"} {
		if ct.Valid() {
			t.Errorf("%q should be invalid", ct)
		}
	}
}

func TestNewChangeID(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	a := NewChangeID(now)
	b := NewChangeID(now)
	if a == b {
		t.Fatal("ids generated at the same instant must still differ")
	}

	// Lexicographic order follows time order for same-width timestamps.
	later := NewChangeID(now.Add(time.Second))
	if !(a < later) {
		t.Errorf("id %q should sort before later id %q", a, later)
	}

	if !strings.HasPrefix(a, "1785585600000000-") {
		t.Errorf("id %q should start with the unix-micro timestamp", a)
	}
}
