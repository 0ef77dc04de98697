// Package castore is the content-addressed store backing the conversion
// pipeline: it fingerprints uploaded bytes, persists them under a dated
// upload directory, and hands out the per-fingerprint working directory
// that holds all conversion artifacts for that content.
//
// The working directory doubles as the conversion cache: identical uploads
// map to the same directory, and stages overwrite their deterministically
// named outputs instead of accumulating duplicates.
package castore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsafeName is returned when an upload filename would escape the store.
var ErrUnsafeName = errors.New("castore: unsafe filename")

// UploadedFile describes stored upload bytes. Immutable once created; the
// pipeline only reads these fields.
type UploadedFile struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	MediaType   string `json:"contentType"`
	Size        int64  `json:"size"`
	Fingerprint string `json:"md5"` // historical JSON key, now a SHA-256 hex digest
	URL         string `json:"url"`
}

// Store manages uploads and per-fingerprint working directories under Root.
type Store struct {
	root string
	now  func() time.Time
}

// New creates a Store rooted at dir (default "static").
func New(dir string) *Store {
	if dir == "" {
		dir = "static"
	}
	return &Store{root: dir, now: time.Now}
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// Fingerprint computes the SHA-256 hex digest of r.
func Fingerprint(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintFile computes the SHA-256 hex digest of the file at path.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Fingerprint(f)
}

// ConvertDir returns the working directory for a fingerprint, creating it if
// absent. Creation is idempotent: calling it twice never errors and never
// clears existing artifacts.
func (s *Store) ConvertDir(fingerprint string) (string, error) {
	if fingerprint == "" || strings.ContainsAny(fingerprint, "/\\") {
		return "", fmt.Errorf("castore: invalid fingerprint %q", fingerprint)
	}
	dir := filepath.Join(s.root, "convert", fingerprint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("castore: mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// SaveUpload persists the upload bytes under <root>/upload/YYYY-MM-DD/<name>
// and returns the immutable file record. The fingerprint is computed from the
// bytes as they are written, in one pass.
func (s *Store) SaveUpload(name, mediaType string, r io.Reader) (*UploadedFile, error) {
	name = sanitizeName(name)
	if name == "" {
		return nil, ErrUnsafeName
	}

	day := s.now().Format("2006-01-02")
	dir := filepath.Join(s.root, "upload", day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("castore: mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("castore: create %s: %w", path, err)
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("castore: write %s: %w", path, err)
	}

	return &UploadedFile{
		Path:        path,
		Name:        name,
		MediaType:   mediaType,
		Size:        size,
		Fingerprint: hex.EncodeToString(h.Sum(nil)),
		URL:         "/" + filepath.ToSlash(path),
	}, nil
}

// sanitizeName reduces a client-supplied filename to its base component and
// rejects traversal attempts.
func sanitizeName(name string) string {
	name = filepath.Base(filepath.Clean(strings.ReplaceAll(name, "\\", "/")))
	if name == "." || name == ".." || name == "/" || strings.Contains(name, "..") {
		return ""
	}
	return name
}
