package designstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/a2ui/internal/protocol"
	"github.com/roach88/a2ui/internal/surface"
	"github.com/roach88/a2ui/internal/validate"
)

// Design is a stored batch.
type Design struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Hash      string            `json:"hash"`
	Revision  int               `json:"revision"`
	Source    string            `json:"source,omitempty"`
	Messages  []json.RawMessage `json:"messages"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Revision is one distinct version of a design.
type Revision struct {
	DesignID  string            `json:"designId"`
	Revision  int               `json:"revision"`
	Hash      string            `json:"hash"`
	Messages  []json.RawMessage `json:"messages"`
	CreatedAt time.Time         `json:"createdAt"`
}

// SaveResult describes the outcome of Save.
type SaveResult struct {
	Design Design
	// Changed is false when the stored content already had the same hash.
	Changed bool
	// Report holds non-blocking validator findings.
	Report validate.Errors
}

// RejectedError is returned by Save when the batch fails validation.
type RejectedError struct {
	ID     string
	Errors validate.Errors
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	blocking := e.Errors.Blocking()
	if len(blocking) == 0 {
		return fmt.Sprintf("design %q rejected", e.ID)
	}
	return fmt.Sprintf("design %q rejected: %d errors (first: %s)", e.ID, len(blocking), blocking[0].Error())
}

// Unwrap exposes the findings to errors.As.
func (e *RejectedError) Unwrap() error {
	return e.Errors
}

// DisplayName derives a design's name from its id.
func DisplayName(id string) string {
	return strings.ReplaceAll(id, "_", " ")
}

// SurfaceID returns the surfaceId of the first createSurface message in
// raws.
func SurfaceID(raws []json.RawMessage) (string, bool) {
	for _, raw := range raws {
		env, err := protocol.DecodeEnvelope(raw)
		if err != nil {
			continue
		}
		if cs, ok := env.Message.(*protocol.CreateSurface); ok && cs.SurfaceID != "" {
			return cs.SurfaceID, true
		}
	}
	return "", false
}

// Canonicalize returns the canonical JSON array for raws and its content
// hash.
func Canonicalize(raws []json.RawMessage) ([]byte, string, error) {
	if raws == nil {
		raws = []json.RawMessage{}
	}
	data, err := json.Marshal(raws)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalize: %w", err)
	}
	canonical, err := protocol.CanonicalizeJSON(data)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalize: %w", err)
	}
	return canonical, protocol.RawHash(canonical), nil
}

// SaveOption configures Save.
type SaveOption func(*saveOptions)

type saveOptions struct {
	source string
}

// WithSource records where the design was read from.
func WithSource(path string) SaveOption {
	return func(o *saveOptions) {
		o.source = path
	}
}

// Save validates raws as a complete export batch and stores it under id.
// An empty id is taken from the batch's createSurface message. Any blocking
// finding rejects the batch with a *RejectedError. A new revision is
// recorded only when the canonical content changes.
func (s *Store) Save(ctx context.Context, id string, raws []json.RawMessage, opts ...SaveOption) (SaveResult, error) {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}
	if id == "" {
		var ok bool
		if id, ok = SurfaceID(raws); !ok {
			return SaveResult{}, fmt.Errorf("save: design id required and batch has no createSurface")
		}
	}

	vopts := append([]validate.Option{}, s.validateOpts...)
	vopts = append(vopts, validate.WithMode(validate.ModeExport))
	report := validate.ValidateRaw(raws, vopts...)
	if err := report.Err(); err != nil {
		return SaveResult{Report: report}, &RejectedError{ID: id, Errors: report}
	}

	canonical, hash, err := Canonicalize(raws)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %q: %w", id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %q: begin: %w", id, err)
	}
	defer tx.Rollback()

	var (
		prevHash  string
		prevRev   int
		createdAt string
	)
	err = tx.QueryRowContext(ctx, `SELECT hash, revision, created_at FROM designs WHERE id = ?`, id).
		Scan(&prevHash, &prevRev, &createdAt)
	exists := true
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return SaveResult{}, fmt.Errorf("save %q: read current: %w", id, err)
	}

	if exists && prevHash == hash {
		if err := tx.Commit(); err != nil {
			return SaveResult{}, fmt.Errorf("save %q: commit: %w", id, err)
		}
		d, err := s.Get(ctx, id)
		if err != nil {
			return SaveResult{}, err
		}
		s.logger.Debug("design unchanged", "id", id, "hash", hash)
		return SaveResult{Design: d, Report: report}, nil
	}

	now := formatTime(s.clock.Now())
	if !exists {
		createdAt = now
	}
	rev := prevRev + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO designs (id, name, hash, content, revision, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hash = excluded.hash,
			content = excluded.content,
			revision = excluded.revision,
			source = excluded.source,
			updated_at = excluded.updated_at
	`, id, DisplayName(id), hash, string(canonical), rev, o.source, createdAt, now)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %q: write design: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO revisions (design_id, revision, hash, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, rev, hash, string(canonical), now)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %q: write revision: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("save %q: commit: %w", id, err)
	}
	s.logger.Info("design saved", "id", id, "revision", rev, "hash", hash)

	d, err := s.Get(ctx, id)
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Design: d, Changed: true, Report: report}, nil
}

const designColumns = `id, name, hash, content, revision, source, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDesign(row rowScanner) (Design, error) {
	var (
		d                Design
		content          string
		created, updated string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Hash, &content, &d.Revision, &d.Source, &created, &updated); err != nil {
		return Design{}, err
	}
	msgs, err := protocol.SplitBatch([]byte(content))
	if err != nil {
		return Design{}, fmt.Errorf("design %q: %w", d.ID, err)
	}
	d.Messages = msgs
	if d.CreatedAt, err = parseTime(created); err != nil {
		return Design{}, err
	}
	if d.UpdatedAt, err = parseTime(updated); err != nil {
		return Design{}, err
	}
	return d, nil
}

// Get returns the design with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Design, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+designColumns+` FROM designs WHERE id = ?`, id)
	d, err := scanDesign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Design{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Design{}, fmt.Errorf("get design %q: %w", id, err)
	}
	return d, nil
}

// List returns every design ordered by id.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) List(ctx context.Context) ([]Design, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+designColumns+` FROM designs ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	defer rows.Close()

	designs := []Design{}
	for rows.Next() {
		d, err := scanDesign(rows)
		if err != nil {
			return nil, fmt.Errorf("list designs: %w", err)
		}
		designs = append(designs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate designs: %w", err)
	}
	return designs, nil
}

// History returns every revision of a design, oldest first.
func (s *Store) History(ctx context.Context, id string) ([]Revision, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT design_id, revision, hash, content, created_at
		FROM revisions
		WHERE design_id = ?
		ORDER BY revision ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("history %q: %w", id, err)
	}
	defer rows.Close()

	revs := []Revision{}
	for rows.Next() {
		var (
			r       Revision
			content string
			created string
		)
		if err := rows.Scan(&r.DesignID, &r.Revision, &r.Hash, &content, &created); err != nil {
			return nil, fmt.Errorf("history %q: %w", id, err)
		}
		if r.Messages, err = protocol.SplitBatch([]byte(content)); err != nil {
			return nil, fmt.Errorf("history %q revision %d: %w", id, r.Revision, err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		revs = append(revs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return revs, nil
}

// Delete removes a design and its history.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM designs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete design %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete design %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.logger.Info("design deleted", "id", id)
	return nil
}

// Clear removes every design and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM designs`)
	if err != nil {
		return 0, fmt.Errorf("clear designs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear designs: %w", err)
	}
	s.logger.Info("designs cleared", "count", n)
	return int(n), nil
}

// Load imports a stored design into a surface store and returns the
// import report.
func (s *Store) Load(ctx context.Context, id string, into *surface.Store) (validate.Errors, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := into.Import(d.Messages)
	if err != nil {
		return report, fmt.Errorf("load design %q: %w", id, err)
	}
	return report, nil
}
