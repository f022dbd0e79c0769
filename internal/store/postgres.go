package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/plancheck/internal/model"
)

// PostgresStore keeps rule sets in Postgres, one row per rule with its position
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres migrates the schema and connects
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if _, err := MigrateUp(databaseURL); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an open, migrated database
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load returns the rules of authority in saved order
func (s *PostgresStore) Load(ctx context.Context, authority string) ([]model.Rule, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rule_sets WHERE authority = $1)`, authority).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query rule set: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, authority)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM rules WHERE authority = $1 ORDER BY position`, authority)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bodies []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		bodies = append(bodies, body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}

	rules, err := model.ParseRuleSet([]byte("[" + strings.Join(bodies, ",") + "]"))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", authority, err)
	}
	return rules, nil
}

// Save replaces the rule set of authority in one transaction
func (s *PostgresStore) Save(ctx context.Context, authority string, rules []model.Rule) error {
	if err := checkAuthority(authority); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rule_sets (authority, updated_at) VALUES ($1, NOW())
		ON CONFLICT (authority) DO UPDATE SET updated_at = EXCLUDED.updated_at`, authority)
	if err != nil {
		return fmt.Errorf("upsert rule set: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE authority = $1`, authority); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rules (authority, position, rule_id, body) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, rule := range rules {
		body, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("marshal rule %s: %w", rule.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, authority, i, rule.ID, string(body)); err != nil {
			return fmt.Errorf("insert rule %s: %w", rule.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rule set: %w", err)
	}
	return nil
}

// List returns every stored rule set, sorted by authority
func (s *PostgresStore) List(ctx context.Context) ([]RuleSetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rs.authority, rs.updated_at, COUNT(r.position)
		FROM rule_sets rs
		LEFT JOIN rules r ON r.authority = rs.authority
		GROUP BY rs.authority, rs.updated_at
		ORDER BY rs.authority`)
	if err != nil {
		return nil, fmt.Errorf("query rule sets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	infos := []RuleSetInfo{}
	for rows.Next() {
		var info RuleSetInfo
		if err := rows.Scan(&info.Authority, &info.UpdatedAt, &info.Count); err != nil {
			return nil, fmt.Errorf("scan rule set: %w", err)
		}
		info.UpdatedAt = info.UpdatedAt.UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule sets: %w", err)
	}
	return infos, nil
}

// Close closes the database
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
