// Package store is the relayer's embedded relational storage: events,
// orgs, and a small metadata KV, backed by SQLite through database/sql.
//
// The access pattern — a *sql.DB held behind a small struct, parameterized
// queries, explicit transactions for multi-row writes — is the teacher's
// own (silver-realtime-transformer/go/checkpoint.go's CheckpointManager),
// just against an embedded, cgo-free SQLite file (modernc.org/sqlite)
// instead of the teacher's always-on Postgres, since the spec calls for a
// single self-contained data file rather than a managed database server.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/withobsrvr/zkvote-relayer/internal/domain"
	"github.com/withobsrvr/zkvote-relayer/internal/relayererr"
)

// Store is the single-writer-serialized embedded database handle. Reads
// run directly against *sql.DB without writeMu; writes take writeMu so
// that SQLite's single-writer model never sees concurrent write
// transactions, matching §4.2's "all write paths are single-writer
// serialized." The pool is capped at one connection, so reads and
// writes also queue behind each other on that connection.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open creates the database file if absent, applies the schema, and
// returns a ready Store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, relayererr.Internal("failed to open store", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: a single connection for reads and writes avoids SQLITE_BUSY
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			ledger INTEGER,
			tx_hash TEXT NOT NULL,
			observed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			verified INTEGER NOT NULL,
			UNIQUE(tx_hash, kind, org_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_org_ledger ON events(org_id, ledger DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_verified ON events(verified)`,
		`CREATE TABLE IF NOT EXISTS orgs (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			admin TEXT NOT NULL,
			open_membership INTEGER NOT NULL,
			members_can_propose INTEGER NOT NULL,
			metadata_ref TEXT NOT NULL,
			member_count INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return relayererr.Internal("schema migration failed", err)
		}
	}
	return nil
}

// AddResult reports whether add_event inserted a new row or found a
// pre-existing duplicate on (tx_hash, kind, org_id).
type AddResult struct {
	Inserted bool
	ID       int64
}

// AddEvent is the atomic insert behind §4.2's add_event contract:
// inserted iff (tx_hash, kind, org_id) is new, duplicate otherwise.
func (s *Store) AddEvent(ctx context.Context, kind string, orgID uint64, payload map[string]any, ledger *uint32, txHash string, verified bool) (AddResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return AddResult{}, relayererr.Internal("failed to marshal event payload", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (org_id, kind, payload, ledger, tx_hash, verified)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tx_hash, kind, org_id) DO NOTHING`,
		orgID, kind, string(payloadJSON), nullableUint32(ledger), txHash, boolToInt(verified))
	if err != nil {
		return AddResult{}, relayererr.Internal("failed to insert event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return AddResult{}, relayererr.Internal("failed to read insert result", err)
	}
	if n == 0 {
		return AddResult{Inserted: false}, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return AddResult{}, relayererr.Internal("failed to read inserted id", err)
	}
	return AddResult{Inserted: true, ID: id}, nil
}

// AddPendingEvent is shorthand for add_event(..., verified=false,
// ledger=nil), used by the Notify API.
func (s *Store) AddPendingEvent(ctx context.Context, orgID uint64, kind string, payload map[string]any, txHash string) (AddResult, error) {
	return s.AddEvent(ctx, kind, orgID, payload, nil, txHash, false)
}

// MarkVerified sets verified=true and fills ledger for every still
// unverified row with the given tx_hash (a notified event may, in
// principle, share a tx_hash across more than one kind/org row, though in
// practice it is one). Rows already verified keep their ledger.
func (s *Store) MarkVerified(ctx context.Context, txHash string, ledger uint32) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET verified = 1, ledger = ? WHERE tx_hash = ? AND verified = 0`,
		ledger, txHash)
	if err != nil {
		return relayererr.Internal("failed to mark event verified", err)
	}
	return nil
}

// DeletePending removes every unverified row with the given tx_hash —
// the chain reported the transaction as failed, so nothing is promoted.
func (s *Store) DeletePending(ctx context.Context, txHash string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE tx_hash = ? AND verified = 0`, txHash)
	if err != nil {
		return relayererr.Internal("failed to delete pending event", err)
	}
	return nil
}

// ListFilter narrows list_events to a subset of kinds, and paginates
// with limit (capped at 100) and offset.
type ListFilter struct {
	Kinds  []string
	Limit  int
	Offset int
}

const maxListLimit = 100

// ListEvents returns rows for an org, newest-first by (ledger desc, id
// desc), plus the total count ignoring limit/offset.
func (s *Store) ListEvents(ctx context.Context, orgID uint64, f ListFilter) ([]domain.Event, int, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	where := "org_id = ?"
	args := []any{orgID}
	if len(f.Kinds) > 0 {
		placeholders := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			placeholders[i] = "?"
			args = append(args, k)
		}
		where += fmt.Sprintf(" AND kind IN (%s)", strings.Join(placeholders, ","))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM events WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, relayererr.Internal("failed to count events", err)
	}

	query := "SELECT id, org_id, kind, payload, ledger, tx_hash, observed_at, verified FROM events WHERE " +
		where + " ORDER BY ledger DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, relayererr.Internal("failed to list events", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// ListUnverified returns up to limit rows with verified=false, for the
// Indexer's verify loop.
func (s *Store) ListUnverified(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, kind, payload, ledger, tx_hash, observed_at, verified
		 FROM events WHERE verified = 0 ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, relayererr.Internal("failed to list unverified events", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var out []domain.Event
	for rows.Next() {
		var (
			e          domain.Event
			payload    string
			ledger     sql.NullInt64
			verifiedInt int
		)
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Kind, &payload, &ledger, &e.TxHash, &e.ObservedAt, &verifiedInt); err != nil {
			return nil, relayererr.Internal("failed to scan event row", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, relayererr.Internal("failed to unmarshal event payload", err)
		}
		if ledger.Valid {
			v := uint32(ledger.Int64)
			e.Ledger = &v
		}
		e.Verified = verifiedInt != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, relayererr.Internal("error iterating event rows", err)
	}
	return out, nil
}

// UpsertOrg inserts or replaces a single OrgCache row.
func (s *Store) UpsertOrg(ctx context.Context, row domain.OrgCache) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.upsertOrgTx(ctx, s.db, row)
}

// UpsertOrgs writes every row in a single transaction (§4.2).
func (s *Store) UpsertOrgs(ctx context.Context, rows []domain.OrgCache) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return relayererr.Internal("failed to begin org upsert transaction", err)
	}
	for _, row := range rows {
		if err := s.upsertOrgTx(ctx, tx, row); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return relayererr.Internal("failed to commit org upsert transaction", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsertOrgTx(ctx context.Context, e execer, row domain.OrgCache) error {
	_, err := e.ExecContext(ctx,
		`INSERT INTO orgs (id, name, admin, open_membership, members_can_propose, metadata_ref, member_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, admin=excluded.admin, open_membership=excluded.open_membership,
		   members_can_propose=excluded.members_can_propose, metadata_ref=excluded.metadata_ref,
		   member_count=excluded.member_count, updated_at=excluded.updated_at`,
		row.ID, row.Name, row.Admin, boolToInt(row.OpenMembership), boolToInt(row.MembersCanPropose),
		row.MetadataRef, row.MemberCount, row.UpdatedAt)
	if err != nil {
		return relayererr.Internal("failed to upsert org", err)
	}
	return nil
}

// GetOrg returns a single org row, or (zero, false, nil) if absent.
func (s *Store) GetOrg(ctx context.Context, id uint64) (domain.OrgCache, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, admin, open_membership, members_can_propose, metadata_ref, member_count, updated_at
		 FROM orgs WHERE id = ?`, id)
	var (
		o                           domain.OrgCache
		openMembership, membersCanPropose int
	)
	if err := row.Scan(&o.ID, &o.Name, &o.Admin, &openMembership, &membersCanPropose, &o.MetadataRef, &o.MemberCount, &o.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.OrgCache{}, false, nil
		}
		return domain.OrgCache{}, false, relayererr.Internal("failed to get org", err)
	}
	o.OpenMembership = openMembership != 0
	o.MembersCanPropose = membersCanPropose != 0
	return o, true, nil
}

// ListOrgs returns every cached org, ordered by id.
func (s *Store) ListOrgs(ctx context.Context) ([]domain.OrgCache, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, admin, open_membership, members_can_propose, metadata_ref, member_count, updated_at
		 FROM orgs ORDER BY id ASC`)
	if err != nil {
		return nil, relayererr.Internal("failed to list orgs", err)
	}
	defer rows.Close()

	var out []domain.OrgCache
	for rows.Next() {
		var (
			o                           domain.OrgCache
			openMembership, membersCanPropose int
		)
		if err := rows.Scan(&o.ID, &o.Name, &o.Admin, &openMembership, &membersCanPropose, &o.MetadataRef, &o.MemberCount, &o.UpdatedAt); err != nil {
			return nil, relayererr.Internal("failed to scan org row", err)
		}
		o.OpenMembership = openMembership != 0
		o.MembersCanPropose = membersCanPropose != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

// OrgsCount returns the number of cached org rows.
func (s *Store) OrgsCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orgs`).Scan(&n); err != nil {
		return 0, relayererr.Internal("failed to count orgs", err)
	}
	return n, nil
}

// GetMeta reads a metadata value, returning ("", false, nil) if absent.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, relayererr.Internal("failed to get metadata", err)
	}
	return v, true, nil
}

// SetMeta upserts a metadata value. Metadata rows are created on first
// write (§3 lifecycle).
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return relayererr.Internal("failed to set metadata", err)
	}
	return nil
}

func nullableUint32(v *uint32) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
