package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {

	if GetVersionString() != "unreleased" {
		t.Fatalf("unexpected version string")
	}
	if !strings.Contains(GetVersionBanner(), "romulator") {
		t.Fatalf("banner missing our name")
	}
}
