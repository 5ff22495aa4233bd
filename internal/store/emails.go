package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/joshsymonds/unclutter/internal/email"
)

const emailColumns = `id, thread_id, subject, from_addr, to_addrs, cc_addrs, received_at,
	snippet, body_plain, body_html, body_source, is_read, is_starred, label_ids,
	category, summary`

// ListOptions filter and bound ListEmails. Results are newest first.
type ListOptions struct {
	Limit         int
	UnreadOnly    bool
	Uncategorized bool
}

// SaveEmail inserts or updates an email by id. A previously stored category
// or summary survives when the new value is empty.
func (s *Store) SaveEmail(ctx context.Context, e email.Email) error {
	threadID := e.ThreadID
	if threadID == "" {
		threadID = e.ID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emails (`+emailColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			thread_id   = excluded.thread_id,
			subject     = excluded.subject,
			from_addr   = excluded.from_addr,
			to_addrs    = excluded.to_addrs,
			cc_addrs    = excluded.cc_addrs,
			received_at = excluded.received_at,
			snippet     = excluded.snippet,
			body_plain  = excluded.body_plain,
			body_html   = excluded.body_html,
			body_source = excluded.body_source,
			is_read     = excluded.is_read,
			is_starred  = excluded.is_starred,
			label_ids   = excluded.label_ids,
			category    = CASE WHEN excluded.category <> '' THEN excluded.category ELSE emails.category END,
			summary     = CASE WHEN excluded.summary <> '' THEN excluded.summary ELSE emails.summary END
	`,
		e.ID, threadID, e.Subject, e.From, encodeList(e.To), encodeList(e.Cc),
		toMillis(e.ReceivedAt), e.Snippet, e.BodyPlain, e.BodyHTML, string(e.BodySource),
		boolInt(e.IsRead), boolInt(e.IsStarred), encodeList(e.LabelIDs),
		string(e.Category), e.Summary,
	)
	if err != nil {
		return fmt.Errorf("save email %s: %w", e.ID, err)
	}
	return nil
}

// GetEmail returns one email or ErrEmailNotFound.
func (s *Store) GetEmail(ctx context.Context, id string) (email.Email, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, id)
	e, err := scanEmail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return email.Email{}, ErrEmailNotFound
	}
	if err != nil {
		return email.Email{}, fmt.Errorf("get email %s: %w", id, err)
	}
	return e, nil
}

// ListEmails returns stored emails, newest first.
func (s *Store) ListEmails(ctx context.Context, opts ListOptions) ([]email.Email, error) {
	var where []string
	if opts.UnreadOnly {
		where = append(where, "is_read = 0")
	}
	if opts.Uncategorized {
		where = append(where, "category = ''")
	}
	q := `SELECT ` + emailColumns + ` FROM emails`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY received_at DESC, id"
	var args []any
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	return s.queryEmails(ctx, "list emails", q, args...)
}

// ListThread returns the emails of a thread, oldest first.
func (s *Store) ListThread(ctx context.Context, threadID string) ([]email.Email, error) {
	return s.queryEmails(ctx, "list thread",
		`SELECT `+emailColumns+` FROM emails WHERE thread_id = ? ORDER BY received_at, id`, threadID)
}

// UpdateCategory sets the LLM category of an email.
func (s *Store) UpdateCategory(ctx context.Context, id string, c email.Category) error {
	return s.updateEmailColumn(ctx, "category", id, string(c))
}

// UpdateSummary sets the LLM summary of an email.
func (s *Store) UpdateSummary(ctx context.Context, id, summary string) error {
	return s.updateEmailColumn(ctx, "summary", id, summary)
}

// DeleteEmail removes an email, e.g. after it was trashed upstream.
func (s *Store) DeleteEmail(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM emails WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete email %s: %w", id, err)
	}
	return requireRow(res, ErrEmailNotFound)
}

// CountEmails returns the number of stored emails.
func (s *Store) CountEmails(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count emails: %w", err)
	}
	return n, nil
}

// column is one of a fixed set of names, never user input.
func (s *Store) updateEmailColumn(ctx context.Context, column, id, value string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE emails SET `+column+` = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("update %s of %s: %w", column, id, err)
	}
	return requireRow(res, ErrEmailNotFound)
}

func (s *Store) queryEmails(ctx context.Context, op, q string, args ...any) ([]email.Email, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []email.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanEmail(row rowScanner) (email.Email, error) {
	var (
		e                 email.Email
		to, cc, labels    string
		received          int64
		source, category  string
		isRead, isStarred int
	)
	if err := row.Scan(
		&e.ID, &e.ThreadID, &e.Subject, &e.From, &to, &cc, &received,
		&e.Snippet, &e.BodyPlain, &e.BodyHTML, &source, &isRead, &isStarred, &labels,
		&category, &e.Summary,
	); err != nil {
		return email.Email{}, err
	}
	var err error
	if e.To, err = decodeList(to); err != nil {
		return email.Email{}, err
	}
	if e.Cc, err = decodeList(cc); err != nil {
		return email.Email{}, err
	}
	if e.LabelIDs, err = decodeList(labels); err != nil {
		return email.Email{}, err
	}
	e.ReceivedAt = fromMillis(received)
	e.BodySource = email.BodySource(source)
	e.Category = email.Category(category)
	e.IsRead = isRead != 0
	e.IsStarred = isStarred != 0
	return e, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
