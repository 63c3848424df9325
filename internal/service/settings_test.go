package service

import (
	"testing"
)

func TestSettingsGetCreatesDefault(t *testing.T) {
	settings := NewSettingsService(newTestDB(t))

	value, err := settings.Get("book_search_offset", "0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "0" {
		t.Errorf("expected default %q, got %q", "0", value)
	}

	// Default only applies on first read.
	if err := settings.Set("book_search_offset", "30"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err = settings.Get("book_search_offset", "0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "30" {
		t.Errorf("expected %q, got %q", "30", value)
	}
}

func TestSettingsSetUpserts(t *testing.T) {
	settings := NewSettingsService(newTestDB(t))

	if err := settings.Set("last_checked_r_suggestmeabook", "100"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := settings.Set("last_checked_r_suggestmeabook", "200"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := settings.Get("last_checked_r_suggestmeabook", "0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "200" {
		t.Errorf("expected %q, got %q", "200", value)
	}
}

func TestSettingsCompareAndSwap(t *testing.T) {
	settings := NewSettingsService(newTestDB(t))

	if err := settings.Set("book_search_hour", "9"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	swapped, err := settings.CompareAndSwap("book_search_hour", "9", "10")
	if err != nil {
		t.Fatalf("CompareAndSwap failed: %v", err)
	}
	if !swapped {
		t.Error("expected swap to succeed")
	}

	// Second swap from the stale value loses.
	swapped, err = settings.CompareAndSwap("book_search_hour", "9", "11")
	if err != nil {
		t.Fatalf("CompareAndSwap failed: %v", err)
	}
	if swapped {
		t.Error("expected swap from stale value to fail")
	}

	value, err := settings.Get("book_search_hour", "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "10" {
		t.Errorf("expected %q, got %q", "10", value)
	}
}
