package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DefaultCommentsQuery selects one comment body per row.
const DefaultCommentsQuery = "SELECT body FROM comments"

// DefaultIgnore lists moderator and bot boilerplate that is skipped when
// reading comments.
var DefaultIgnore = []string{
	"Thank you for participating in /r/Politics",
	"*I am a bot",
}

// SQLiteSource reads one document per row from a comments database. Rows are
// whitespace collapsed, and rows containing any Ignore substring or nothing
// but whitespace are skipped.
type SQLiteSource struct {
	DB     *sql.DB
	Query  string   // Default: DefaultCommentsQuery
	Ignore []string // Default: DefaultIgnore; use an empty non-nil slice to keep everything
}

// Documents runs the query and returns the remaining rows in result order.
func (s SQLiteSource) Documents(ctx context.Context) ([]string, error) {
	query := s.Query
	if query == "" {
		query = DefaultCommentsQuery
	}
	ignore := s.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query comments: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var docs []string
rowLoop:
	for rows.Next() {
		var body sql.NullString
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("could not scan comment: %w", err)
		}
		doc := collapse(body.String)
		if doc == "" {
			continue
		}
		for _, skip := range ignore {
			if strings.Contains(doc, skip) {
				continue rowLoop
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Name returns "sqlite".
func (s SQLiteSource) Name() string {
	return "sqlite"
}

// Comment is one collected post.
type Comment struct {
	ID     string
	Author string
	Body   string
	Time   float64
}

// SetupCommentsSchema creates the comments table if it does not exist.
func SetupCommentsSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    author TEXT,
    body TEXT,
    time REAL
);`)
	if err != nil {
		return fmt.Errorf("could not create comments schema: %w", err)
	}
	return nil
}

// InsertComments stores comments in one transaction. Comments whose id is
// already present are ignored. It returns the number of new rows.
func InsertComments(ctx context.Context, db *sql.DB, comments []Comment) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO comments (id, author, body, time) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmt)

	var added int64
	for _, c := range comments {
		res, err := stmt.ExecContext(ctx, c.ID, c.Author, c.Body, c.Time)
		if err != nil {
			return 0, fmt.Errorf("could not insert comment %s: %w", c.ID, err)
		}
		n, _ := res.RowsAffected()
		added += n
	}
	return added, tx.Commit()
}
