package version

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	if info.Version == "" {
		t.Error("expected non-empty version")
	}
	if info.GoVersion == "" {
		t.Error("expected non-empty go version")
	}
	if !strings.Contains(info.Platform, runtime.GOOS) || !strings.Contains(info.Platform, runtime.GOARCH) {
		t.Errorf("unexpected platform %s", info.Platform)
	}
}

func TestString(t *testing.T) {
	originalCommit := Commit
	defer func() { Commit = originalCommit }()

	Commit = "unknown"
	if s := String(); !strings.HasPrefix(s, ApplicationName+" version ") {
		t.Errorf("unexpected string %s", s)
	}

	Commit = "0123456789abcdef"
	s := String()
	if !strings.Contains(s, "commit: 01234567") {
		t.Errorf("expected abbreviated commit, got %s", s)
	}
	if strings.Contains(s, "89abcdef") {
		t.Errorf("commit not abbreviated: %s", s)
	}
}

func TestShort(t *testing.T) {
	originalVersion, originalCommit := Version, Commit
	defer func() { Version, Commit = originalVersion, originalCommit }()

	Version, Commit = "1.2.3", "unknown"
	if s := Short(); s != "1.2.3" {
		t.Errorf("Short() = %s, want 1.2.3", s)
	}

	Commit = "fedcba9876543210"
	if s := Short(); s != "1.2.3 (fedcba98)" {
		t.Errorf("Short() = %s", s)
	}
}

func TestJSON(t *testing.T) {
	var info Info
	if err := json.Unmarshal([]byte(JSON()), &info); err != nil {
		t.Fatalf("JSON() is not valid JSON: %v", err)
	}
	if info.Version != Version {
		t.Errorf("version = %s, want %s", info.Version, Version)
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if !strings.HasPrefix(ua, ApplicationName+"/") {
		t.Errorf("expected user agent to start with %s/, got %s", ApplicationName, ua)
	}
}
