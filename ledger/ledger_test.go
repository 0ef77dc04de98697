package ledger_test

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/filepipe/dbopen"
	"github.com/hazyhaar/filepipe/ledger"
)

func TestRecordAndRecent(t *testing.T) {
	db := dbopen.OpenMemory(t)
	s := ledger.New(db, nil)
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	s.RecordAsync(&ledger.Entry{
		Fingerprint: "fp1",
		Filename:    "report.docx",
		Category:    "office",
		DurationMS:  1200,
		ImageCount:  4,
		PDF:         "/static/convert/fp1/result.pdf",
	})
	s.RecordAsync(&ledger.Entry{
		Fingerprint: "fp2",
		Filename:    "notes.txt",
		Category:    "text",
		TextChars:   42,
	})

	// Close drains the buffer synchronously.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	// Newest first.
	if entries[0].Fingerprint != "fp2" {
		t.Errorf("entries[0] = %s, want fp2", entries[0].Fingerprint)
	}
	if entries[1].Category != "office" {
		t.Errorf("entries[1].Category = %s", entries[1].Category)
	}
	if entries[1].PDF == "" {
		t.Error("pdf reference lost")
	}
	if entries[0].Timestamp == 0 {
		t.Error("timestamp not defaulted")
	}
}

func TestCloseIdempotent(t *testing.T) {
	db := dbopen.OpenMemory(t)
	s := ledger.New(db, nil)
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBatchFlushOnTick(t *testing.T) {
	db := dbopen.OpenMemory(t)
	s := ledger.New(db, nil)
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.RecordAsync(&ledger.Entry{Fingerprint: "fp", Filename: "a.pdf", Category: "pdf"})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := s.Recent(context.Background(), 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) == 1 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("entry never flushed")
}
