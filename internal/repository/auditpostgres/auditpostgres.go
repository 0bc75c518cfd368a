package auditpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

// Create is idempotent on uid: a redelivered event is not an error.
func (p PostgresRepo) Create(ctx context.Context, s *model.Submission) error {
	query := `INSERT INTO submissions (uid, customer_id, operation, outcome, attempts, payload_bytes, mime_type, original_key, message, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (uid) DO NOTHING`
	return p.DB.QueryRowContext(ctx, query, s.UID, s.CustomerID, s.Operation, s.Outcome, s.Attempts, s.PayloadBytes, s.MIMEType, s.OriginalKey, s.Message, s.CreatedAt).Err()
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT uid, customer_id, operation, outcome, attempts, payload_bytes, mime_type, original_key, message, created_at
	FROM submissions
	WHERE uid = $1`
	var s model.Submission

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&s.UID,
		&s.CustomerID,
		&s.Operation,
		&s.Outcome,
		&s.Attempts,
		&s.PayloadBytes,
		&s.MIMEType,
		&s.OriginalKey,
		&s.Message,
		&s.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrSubmissionNotFound
		default:
			return nil, err // 500
		}
	}
	return &s, nil
}

// GetList expects req already normalised: Sort and Order are interpolated.
func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Submission, error) {
	query := fmt.Sprintf(`SELECT uid, customer_id, operation, outcome, attempts, payload_bytes, mime_type, original_key, message, created_at
	FROM submissions
	ORDER BY %s %s
	LIMIT $1
	OFFSET $2`, req.Sort, req.Order)

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, req.Limit, offset)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	res := make([]model.Submission, 0, req.Limit)
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.UID,
			&s.CustomerID,
			&s.Operation,
			&s.Outcome,
			&s.Attempts,
			&s.PayloadBytes,
			&s.MIMEType,
			&s.OriginalKey,
			&s.Message,
			&s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return res, nil
}
