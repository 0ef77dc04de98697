// Package ledger persists a history of completed conversions to SQLite,
// keyed by content fingerprint. Writes are asynchronous and batched so the
// request path never blocks on the database; the table gives operators the
// cache/history view of the content-addressed conversion store.
package ledger

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/filepipe/dbopen"
)

// Schema for the conversions table. Applied by Init.
const Schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL,
	filename TEXT NOT NULL,
	category TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	text_chars INTEGER NOT NULL,
	image_count INTEGER NOT NULL,
	pdf TEXT,
	video TEXT,
	audio TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversions_fp ON conversions(fingerprint);
CREATE INDEX IF NOT EXISTS idx_conversions_ts ON conversions(timestamp);
`

// Entry is one recorded conversion.
type Entry struct {
	Fingerprint string `json:"fingerprint"`
	Filename    string `json:"filename"`
	Category    string `json:"category"`
	DurationMS  int64  `json:"duration_ms"`
	TextChars   int    `json:"text_chars"`
	ImageCount  int    `json:"image_count"`
	PDF         string `json:"pdf,omitempty"`
	Video       string `json:"video,omitempty"`
	Audio       string `json:"audio,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Store persists conversion entries asynchronously: buffered channel,
// batch flush on size or tick, drop-on-full so the pipeline never feels
// backpressure from its own bookkeeping.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	ch     chan *Entry
	done   chan struct{}
	once   sync.Once
}

// New creates a ledger store backed by db and starts its flush goroutine.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger,
		ch:     make(chan *Entry, 1024),
		done:   make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Init creates the conversions table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// RecordAsync queues an entry for persistence. Non-blocking; drops if the
// buffer is full.
func (s *Store) RecordAsync(e *Entry) {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	select {
	case s.ch <- e:
	default:
		s.logger.Warn("ledger buffer full, dropping entry", "fingerprint", e.Fingerprint)
	}
}

// Recent returns the most recent entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, filename, category, duration_ms, text_chars,
		       image_count, COALESCE(pdf,''), COALESCE(video,''), COALESCE(audio,''), timestamp
		FROM conversions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Fingerprint, &e.Filename, &e.Category, &e.DurationMS,
			&e.TextChars, &e.ImageCount, &e.PDF, &e.Video, &e.Audio, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close drains the buffer and stops the flush goroutine.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Entry, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}
	err := dbopen.RunTx(context.Background(), s.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO conversions
				(fingerprint, filename, category, duration_ms, text_chars,
				 image_count, pdf, video, audio, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range batch {
			if _, err := stmt.Exec(e.Fingerprint, e.Filename, e.Category, e.DurationMS,
				e.TextChars, e.ImageCount, e.PDF, e.Video, e.Audio, e.Timestamp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("ledger flush failed", "entries", len(batch), "error", err)
	}
}
