package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/joshsymonds/unclutter/internal/groups"
)

const groupColumns = `id, name, description, color, keywords, domains, senders, sort_order, created_at, updated_at`

// CreateGroup validates, normalises and stores a new group. An empty ID gets
// a fresh UUID; a zero SortOrder places the group after all others.
func (s *Store) CreateGroup(ctx context.Context, g groups.Group) (groups.Group, error) {
	if err := g.Validate(); err != nil {
		return groups.Group{}, err
	}
	g = g.Normalized()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := s.now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return groups.Group{}, fmt.Errorf("begin create group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if g.SortOrder == 0 {
		var last int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order), 0) FROM email_groups`).Scan(&last); err != nil {
			return groups.Group{}, fmt.Errorf("next sort order: %w", err)
		}
		g.SortOrder = last + 1
	}
	if err := insertGroup(ctx, tx, g); err != nil {
		return groups.Group{}, err
	}
	if err := tx.Commit(); err != nil {
		return groups.Group{}, fmt.Errorf("commit create group: %w", err)
	}
	return g, nil
}

// GetGroup returns one group or ErrGroupNotFound.
func (s *Store) GetGroup(ctx context.Context, id string) (groups.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM email_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return groups.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return groups.Group{}, fmt.Errorf("get group %s: %w", id, err)
	}
	return g, nil
}

// ListGroups returns every group by ascending sort order.
func (s *Store) ListGroups(ctx context.Context) ([]groups.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM email_groups ORDER BY sort_order, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []groups.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return out, nil
}

// UpdateGroup replaces the editable fields of an existing group.
func (s *Store) UpdateGroup(ctx context.Context, g groups.Group) (groups.Group, error) {
	if err := g.Validate(); err != nil {
		return groups.Group{}, err
	}
	g = g.Normalized()
	g.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_groups SET
			name = ?, description = ?, color = ?, keywords = ?, domains = ?,
			senders = ?, sort_order = ?, updated_at = ?
		WHERE id = ?`,
		g.Name, g.Description, g.Color, encodeList(g.Keywords), encodeList(g.Domains),
		encodeList(g.Senders), g.SortOrder, toMillis(g.UpdatedAt), g.ID,
	)
	if err != nil {
		return groups.Group{}, fmt.Errorf("update group %s: %w", g.ID, err)
	}
	if err := requireRow(res, ErrGroupNotFound); err != nil {
		return groups.Group{}, err
	}
	return s.GetGroup(ctx, g.ID)
}

// DeleteGroup removes a group. Emails are untouched since membership is
// computed on read.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM email_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group %s: %w", id, err)
	}
	return requireRow(res, ErrGroupNotFound)
}

// EnsureDefaultGroups creates the starter groups when none exist and reports
// how many were created.
func (s *Store) EnsureDefaultGroups(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin default groups: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_groups`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	now := s.now().UTC()
	defaults := groups.DefaultGroups()
	for _, g := range defaults {
		g = g.Normalized()
		g.ID = uuid.NewString()
		g.CreatedAt, g.UpdatedAt = now, now
		if err := insertGroup(ctx, tx, g); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit default groups: %w", err)
	}
	return len(defaults), nil
}

func insertGroup(ctx context.Context, tx *sql.Tx, g groups.Group) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO email_groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.Color, encodeList(g.Keywords), encodeList(g.Domains),
		encodeList(g.Senders), g.SortOrder, toMillis(g.CreatedAt), toMillis(g.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert group %q: %w", g.Name, err)
	}
	return nil
}

func scanGroup(row rowScanner) (groups.Group, error) {
	var (
		g                         groups.Group
		keywords, domains, sender string
		created, updated          int64
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Color, &keywords, &domains, &sender,
		&g.SortOrder, &created, &updated); err != nil {
		return groups.Group{}, err
	}
	var err error
	if g.Keywords, err = decodeList(keywords); err != nil {
		return groups.Group{}, err
	}
	if g.Domains, err = decodeList(domains); err != nil {
		return groups.Group{}, err
	}
	if g.Senders, err = decodeList(sender); err != nil {
		return groups.Group{}, err
	}
	g.CreatedAt = fromMillis(created)
	g.UpdatedAt = fromMillis(updated)
	return g, nil
}
