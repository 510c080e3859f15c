package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/localparts/tokenbridge/internal/config"
	"github.com/localparts/tokenbridge/internal/core"
)

func TestFactorySelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AuditConfig
		want    string
		wantErr bool
	}{
		{"disabled", config.AuditConfig{Enabled: false, Type: "memory"}, "*audit.NoopAuditor", false},
		{"memory", config.AuditConfig{Enabled: true, Type: "memory"}, "*audit.InMemoryAuditor", false},
		{"file", config.AuditConfig{Enabled: true, Type: "file", Path: filepath.Join(t.TempDir(), "audit.log")}, "*audit.FileAuditor", false},
		{"unknown", config.AuditConfig{Enabled: true, Type: "syslog"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer func() { _ = a.Close() }()
			if got := fmt.Sprintf("%T", a); got != tt.want {
				t.Errorf("auditor type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInMemoryAuditorRetention(t *testing.T) {
	a := NewInMemoryAuditor()
	for i := 0; i < maxRetained+10; i++ {
		if err := a.Log(core.AuditEntry{ID: fmt.Sprintf("e%d", i)}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	all, err := a.GetRecent(maxRetained * 2)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(all) != maxRetained {
		t.Fatalf("retained %d entries, want %d", len(all), maxRetained)
	}
	// the oldest 10 must have been dropped
	if all[0].ID != "e10" {
		t.Errorf("oldest retained = %s, want e10", all[0].ID)
	}

	recent, err := a.GetRecent(3)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d entries, want 3", len(recent))
	}
	if recent[2].ID != fmt.Sprintf("e%d", maxRetained+9) {
		t.Errorf("newest = %s, want e%d", recent[2].ID, maxRetained+9)
	}
}

func TestFileAuditorWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	a, err := NewFileAuditor(path)
	if err != nil {
		t.Fatalf("NewFileAuditor failed: %v", err)
	}

	entries := []core.AuditEntry{
		{ID: "a", Time: time.Now(), Action: core.ActionTranslate, Subject: "u1", Success: true},
		{ID: "b", Time: time.Now(), Action: core.ActionForward, Subject: "u2", UpstreamStatus: 201, Success: true},
	}
	for _, e := range entries {
		if err := a.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening audit file: %v", err)
	}
	defer func() { _ = f.Close() }()

	var got []core.AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e core.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		got = append(got, e)
	}
	if len(got) != len(entries) {
		t.Fatalf("read %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].ID != entries[i].ID || got[i].Subject != entries[i].Subject {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], entries[i])
		}
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("some.jwt.token")
	if !strings.HasPrefix(fp, "sha256:") {
		t.Errorf("fingerprint %q lacks sha256: prefix", fp)
	}
	if fp != Fingerprint("some.jwt.token") {
		t.Error("fingerprint is not stable for the same input")
	}
	if fp == Fingerprint("other.jwt.token") {
		t.Error("distinct tokens share a fingerprint")
	}
	if strings.Contains(fp, "some") {
		t.Error("fingerprint leaks token material")
	}
}
