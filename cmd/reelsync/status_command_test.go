package main

import "testing"

func TestStatusWithoutServices(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, cfgPath, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	requireContains(t, out, "== Configuration ==")
	requireContains(t, out, "not running")
	requireContains(t, out, "empty")
	requireContains(t, out, "not configured")
}
