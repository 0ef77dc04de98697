package castore

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFingerprintStable(t *testing.T) {
	a, err := Fingerprint(strings.NewReader("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fingerprint(strings.NewReader("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("same bytes produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}

	c, _ := Fingerprint(strings.NewReader("hello worlds"))
	if c == a {
		t.Fatal("different bytes produced identical fingerprints")
	}
}

func TestConvertDirIdempotent(t *testing.T) {
	s := New(t.TempDir())

	dir1, err := s.ConvertDir("abc123")
	if err != nil {
		t.Fatal(err)
	}

	// Leave an artifact behind, then ask again.
	artifact := filepath.Join(dir1, "result.pdf")
	if err := os.WriteFile(artifact, []byte("pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	dir2, err := s.ConvertDir("abc123")
	if err != nil {
		t.Fatalf("second ConvertDir errored: %v", err)
	}
	if dir1 != dir2 {
		t.Fatalf("ConvertDir not deterministic: %s vs %s", dir1, dir2)
	}
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("existing artifact was lost: %v", err)
	}
}

func TestConvertDirRejectsBadFingerprint(t *testing.T) {
	s := New(t.TempDir())
	for _, fp := range []string{"", "../escape", "a/b"} {
		if _, err := s.ConvertDir(fp); err == nil {
			t.Errorf("ConvertDir(%q): expected error", fp)
		}
	}
}

func TestSaveUpload(t *testing.T) {
	s := New(t.TempDir())
	s.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }

	content := []byte("some document bytes")
	info, err := s.SaveUpload("report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}

	if info.Name != "report.docx" {
		t.Errorf("name = %q", info.Name)
	}
	if info.Size != int64(len(content)) {
		t.Errorf("size = %d, want %d", info.Size, len(content))
	}
	if !strings.Contains(info.Path, "2026-03-14") {
		t.Errorf("path missing date dir: %s", info.Path)
	}
	if !strings.HasPrefix(info.URL, "/") {
		t.Errorf("URL not relative-rooted: %s", info.URL)
	}

	saved, err := os.ReadFile(info.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(saved, content) {
		t.Error("saved bytes differ from input")
	}

	want, _ := Fingerprint(bytes.NewReader(content))
	if info.Fingerprint != want {
		t.Errorf("fingerprint = %s, want %s", info.Fingerprint, want)
	}
}

func TestSaveUploadSanitizesName(t *testing.T) {
	s := New(t.TempDir())

	info, err := s.SaveUpload("../../etc/passwd", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "passwd" {
		t.Errorf("name = %q, want %q", info.Name, "passwd")
	}
	if strings.Contains(info.Path, "..") {
		t.Errorf("path escaped store root: %s", info.Path)
	}

	if _, err := s.SaveUpload("..", "text/plain", strings.NewReader("x")); err == nil {
		t.Error("expected error for bare ..")
	}
}
