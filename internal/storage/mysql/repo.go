package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"guesthouse/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return "null"
	}
	return string(b)
}
func valTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	values := make([]string, 0, len(docs))
	args := make([]any, 0, len(docs)*6)
	for _, d := range docs {
		values = append(values, "(?,?,?,?,?,?)")
		args = append(args,
			d.ID,
			string(d.Type),
			valStr(d.House),
			d.Rev,
			d.Position,
			valJSON(d.Payload),
		)
	}
	sqlStr := upsertDocumentsPrefix + strings.Join(values, ",") + upsertDocumentsOnDup
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert %d documents: %w", len(docs), err)
	}
	return nil
}

// DeleteStale removes documents of type t that the CMS no longer returns.
// An empty keepIDs removes every document of the type.
func (r *Repo) DeleteStale(ctx context.Context, t domain.DocType, keepIDs []string) (int64, error) {
	q := "DELETE FROM cms_documents WHERE doc_type = ?"
	args := []any{string(t)}
	if len(keepIDs) > 0 {
		q += " AND id NOT IN (" + strings.TrimSuffix(strings.Repeat("?,", len(keepIDs)), ",") + ")"
		for _, id := range keepIDs {
			args = append(args, id)
		}
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) LogSubmission(ctx context.Context, rec domain.SubmissionRecord) error {
	_, err := r.db.ExecContext(ctx, insertSubmissionSQL,
		rec.ID,
		string(rec.Kind),
		rec.To,
		rec.Email,
		rec.Status,
		valStr(rec.Error),
		valStr(rec.MessageID),
		valJSON(rec.Payload),
		valTime(rec.CreatedAt),
	)
	return err
}

func (r *Repo) ListDocuments(ctx context.Context, t domain.DocType, house *string) ([]domain.Document, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if house == nil {
		rows, err = r.db.QueryContext(ctx, listDocumentsSQL, string(t))
	} else {
		rows, err = r.db.QueryContext(ctx, listHouseDocumentsSQL, string(t), *house)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		var (
			d       domain.Document
			docType string
			h       sql.NullString
			payload sql.RawBytes
		)
		if err := rows.Scan(&d.ID, &docType, &h, &d.Rev, &d.Position, &payload); err != nil {
			return nil, err
		}
		d.Type = domain.DocType(docType)
		if h.Valid {
			s := h.String
			d.House = &s
		}
		d.Payload = append([]byte(nil), payload...)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
