package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/logging"
	"github.com/Aman-CERP/docsift/internal/manifest"

	_ "modernc.org/sqlite" // Pure Go SQLite driver with FTS5
)

// Store is the SQLite FTS5 index. The database file is opened and closed
// within each call.
type Store struct {
	path   string
	opts   Options
	logger *slog.Logger
}

// NewStore returns a store for the database file at path.
func NewStore(path string, opts Options, logger *slog.Logger) *Store {
	return &Store{path: path, opts: opts.withDefaults(), logger: logging.OrNop(logger)}
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

const schema = `
	CREATE TABLE IF NOT EXISTS document_metadata (
		id INTEGER PRIMARY KEY,
		filename TEXT NOT NULL UNIQUE,
		document_id TEXT NOT NULL,
		source_url TEXT,
		organization TEXT,
		category TEXT,
		file_type TEXT,
		character_count INTEGER NOT NULL DEFAULT 0,
		extraction_method TEXT,
		indexed_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metadata_document_id ON document_metadata(document_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS document_fts USING fts5(
		filename,
		document_id,
		content
	);
`

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	dsn := s.path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; avoids SQLITE_BUSY inside the build transaction.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA cache_size=-65536",
		"PRAGMA temp_store=MEMORY",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	return db, nil
}

func closeDB(db *sql.DB) {
	_, _ = db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	_ = db.Close()
}

// validateIntegrity checks an existing database before it is rebuilt.
func validateIntegrity(ctx context.Context, db *sql.DB) error {
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Build rebuilds the index from every text file in textDir. The text
// directory is checked before the database is touched, so a bad path never
// destroys an existing index.
func (s *Store) Build(ctx context.Context, textDir string, meta manifest.Metadata) (*BuildStats, error) {
	files, err := textFiles(textDir)
	if err != nil {
		return nil, err
	}

	lock, err := buildLock(ctx, s.path, s.opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	if _, statErr := os.Stat(s.path); statErr == nil {
		if err := s.checkExisting(ctx); err != nil {
			s.logger.Warn("index corrupted, recreating", "path", s.path, "error", err)
			for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
				_ = os.Remove(p)
			}
		}
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, serr.New(serr.ErrCodeIndexFailed, "cannot open index", err)
	}
	defer closeDB(db)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, serr.New(serr.ErrCodeIndexFailed, "failed to initialize schema", err)
	}

	started := time.Now()
	stats := &BuildStats{}
	if err := s.fill(ctx, db, newLoader(textDir, meta, s.opts.IDs, s.logger), files, stats); err != nil {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		return stats, serr.New(serr.ErrCodeIndexFailed, "index build failed", err)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO document_fts(document_fts) VALUES('optimize')`); err != nil {
		s.logger.Warn("fts optimize failed", "error", err)
	}

	s.logger.Info("index built",
		"backend", BackendSQLite, "path", s.path,
		"total", stats.Total, "indexed", stats.Indexed, "failed", stats.Failed,
		"duration", time.Since(started))
	return stats, nil
}

func (s *Store) checkExisting(ctx context.Context) error {
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return validateIntegrity(ctx, db)
}

// fill clears both tables and inserts every entry in one transaction.
func (s *Store) fill(ctx context.Context, db *sql.DB, l *loader, files []string, stats *BuildStats) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM document_fts`, `DELETE FROM document_metadata`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	}

	metaStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_metadata
			(filename, document_id, source_url, organization, category, file_type, character_count, extraction_method, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare metadata statement: %w", err)
	}
	defer metaStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_fts(rowid, filename, document_id, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer ftsStmt.Close()

	now := time.Now().UTC()
	err = l.each(ctx, files, stats, func(e Entry) error {
		res, err := metaStmt.ExecContext(ctx, e.Filename, e.DocumentID, e.SourceURL, e.Organization,
			e.Category, e.FileType, e.CharacterCount, e.Method, now)
		if err != nil {
			return fmt.Errorf("failed to insert metadata for %s: %w", e.Filename, err)
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := ftsStmt.ExecContext(ctx, rowid, e.Filename, e.DocumentID, e.Content); err != nil {
			return fmt.Errorf("failed to index %s: %w", e.Filename, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) requireDB() error {
	if _, err := os.Stat(s.path); err != nil {
		return serr.New(serr.ErrCodeIndexNotFound, fmt.Sprintf("index not found: %s", s.path), err).
			WithSuggestion("Run 'docsift index build' first")
	}
	return nil
}

// Search runs an FTS5 query ranked by bm25.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, serr.New(serr.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if err := s.requireDB(); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, serr.New(serr.ErrCodeIndexFailed, "cannot open index", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, `
		SELECT m.filename, m.document_id, COALESCE(m.source_url, ''), COALESCE(m.organization, ''),
			COALESCE(m.category, ''), COALESCE(m.file_type, ''), COALESCE(m.extraction_method, ''),
			m.character_count, rank, snippet(document_fts, 2, ?, ?, '...', ?)
		FROM document_fts
		JOIN document_metadata m ON m.id = document_fts.rowid
		WHERE document_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		s.opts.HighlightOpen, s.opts.HighlightClose, s.opts.SnippetTokens, NormalizeQuery(query), opts.Limit)
	if err != nil {
		return nil, queryError(query, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var rank float64
		if err := rows.Scan(&r.Filename, &r.DocumentID, &r.SourceURL, &r.Organization, &r.Category,
			&r.FileType, &r.Method, &r.CharacterCount, &rank, &r.Snippet); err != nil {
			return nil, queryError(query, err)
		}
		// bm25 is negative; lower is better.
		r.Score = -rank
		r.Rank = len(results) + 1
		if !opts.Highlight {
			r.Snippet = stripMarkers(r.Snippet, s.opts.HighlightOpen, s.opts.HighlightClose)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(query, err)
	}
	return results, nil
}

func queryError(query string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "fts5") || strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "no such column") || strings.Contains(msg, "unterminated string") {
		return serr.New(serr.ErrCodeQueryInvalid, "invalid search syntax", err).
			WithDetail("query", query).
			WithSuggestion(`Quote phrases with "..." and use AND, OR, NOT in uppercase`)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return serr.New(serr.ErrCodeIndexFailed, "search failed", err)
}

// Stats reports document counts and the database size.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}
	db, err := s.open(ctx)
	if err != nil {
		return nil, serr.New(serr.ErrCodeIndexFailed, "cannot open index", err)
	}
	defer closeDB(db)

	st := &Stats{Backend: BackendSQLite, Path: s.path, ByFileType: map[string]int{}, ByMethod: map[string]int{}}
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(character_count), 0) FROM document_metadata`).
		Scan(&st.Documents, &st.Characters)
	if err != nil {
		return nil, serr.New(serr.ErrCodeIndexFailed, "cannot read index stats", err)
	}
	if err := groupCounts(ctx, db, "file_type", st.ByFileType); err != nil {
		return nil, err
	}
	if err := groupCounts(ctx, db, "extraction_method", st.ByMethod); err != nil {
		return nil, err
	}

	if info, err := os.Stat(s.path); err == nil {
		st.SizeBytes = info.Size()
	}
	return st, nil
}

// groupCounts fills counts with COUNT(*) grouped by column, which must be
// one of the fixed metadata columns.
func groupCounts(ctx context.Context, db *sql.DB, column string, counts map[string]int) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT COALESCE(%[1]s, ''), COUNT(*) FROM document_metadata GROUP BY %[1]s`, column))
	if err != nil {
		return serr.New(serr.ErrCodeIndexFailed, "cannot read index stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return serr.New(serr.ErrCodeIndexFailed, "cannot read index stats", err)
		}
		if key == "" {
			key = "unknown"
		}
		counts[key] += n
	}
	return rows.Err()
}
