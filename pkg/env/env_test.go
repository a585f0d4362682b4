package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("DOMEO_TEST_VALUE", "  console ")
	if got := Get("DOMEO_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("DOMEO_TEST_VALUE", "   ")
	if got := Get("DOMEO_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}

func TestFirst(t *testing.T) {
	t.Setenv("DOMEO_TEST_A", "")
	t.Setenv("DOMEO_TEST_B", "b")
	t.Setenv("DOMEO_TEST_C", "c")
	if got, ok := First("DOMEO_TEST_A", "DOMEO_TEST_B", "DOMEO_TEST_C"); !ok || got != "b" {
		t.Fatalf("expected b, got %q ok=%v", got, ok)
	}
	if _, ok := First("DOMEO_TEST_A"); ok {
		t.Fatal("expected no value")
	}
}
