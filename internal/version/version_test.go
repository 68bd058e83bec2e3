package version

import (
	"strings"
	"testing"
)

func TestShortCommit(t *testing.T) {
	t.Parallel()
	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("shortCommit = %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("shortCommit = %q", got)
	}
}

func TestResolveNeverEmpty(t *testing.T) {
	t.Parallel()
	info := Resolve()
	if info.Version == "" || info.GoVersion == "" {
		t.Fatalf("incomplete info: %+v", info)
	}
	if !strings.HasPrefix(UserAgent(), "loom/") {
		t.Fatalf("UserAgent = %q", UserAgent())
	}
	if !strings.HasPrefix(String(), info.Version) {
		t.Fatalf("String = %q", String())
	}
}
