package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tasnim.dev/cloud-gatekeeper/internal/access"
)

// RequestRepository persists access requests.
type RequestRepository struct {
	db *DB
}

func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, requester_id, requester_email, project, permissions_json,
	status, approver_id, rejection_reason, created_at, updated_at, version`

// Create inserts a new request.
func (r *RequestRepository) Create(ctx context.Context, req *access.AccessRequest) error {
	if req.ID == "" {
		return errors.New("access request id is required")
	}

	perms, err := marshalPermissions(req.Permissions)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO access_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID,
		req.RequesterID,
		req.RequesterEmail,
		req.Project,
		perms,
		string(req.Status),
		nullString(req.ApproverID),
		nullString(req.RejectionReason),
		formatTime(req.CreatedAt),
		formatTime(req.UpdatedAt),
		req.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access request: %w", err)
	}
	return nil
}

// Replace overwrites the stored request only if its version still equals
// expectedVersion. On success req.Version is advanced.
func (r *RequestRepository) Replace(ctx context.Context, req *access.AccessRequest, expectedVersion int64) error {
	perms, err := marshalPermissions(req.Permissions)
	if err != nil {
		return err
	}

	var affected int64
	err = withRetry(ctx, func() error {
		result, err := r.db.ExecContext(ctx, `
			UPDATE access_requests
			SET requester_email = ?, project = ?, permissions_json = ?, status = ?,
				approver_id = ?, rejection_reason = ?, updated_at = ?, version = ?
			WHERE id = ? AND version = ?
		`,
			req.RequesterEmail,
			req.Project,
			perms,
			string(req.Status),
			nullString(req.ApproverID),
			nullString(req.RejectionReason),
			formatTime(req.UpdatedAt),
			expectedVersion+1,
			req.ID,
			expectedVersion,
		)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update access request: %w", err)
	}

	if affected == 0 {
		if _, err := r.FindByID(ctx, req.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: access request %s is no longer at version %d", ErrVersionConflict, req.ID, expectedVersion)
	}

	req.Version = expectedVersion + 1
	return nil
}

// FindByID returns the request, or ErrNotFound.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*access.AccessRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM access_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("access request %s: %w", id, ErrNotFound)
	}
	return req, err
}

// ListByStatus returns requests with the given status, oldest first.
func (r *RequestRepository) ListByStatus(ctx context.Context, status access.Status) ([]*access.AccessRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests
		WHERE status = ?
		ORDER BY created_at, id
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query access requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// List returns every request, oldest first.
func (r *RequestRepository) List(ctx context.Context) ([]*access.AccessRequest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM access_requests ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query access requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequests(rows *sql.Rows) ([]*access.AccessRequest, error) {
	var reqs []*access.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access requests: %w", err)
	}
	return reqs, nil
}

func scanRequest(s rowScanner) (*access.AccessRequest, error) {
	var (
		req                  access.AccessRequest
		perms, status        string
		approver, reason     sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(
		&req.ID,
		&req.RequesterID,
		&req.RequesterEmail,
		&req.Project,
		&perms,
		&status,
		&approver,
		&reason,
		&createdAt,
		&updatedAt,
		&req.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan access request: %w", err)
	}

	req.Status = access.Status(status)
	req.ApproverID = approver.String
	req.RejectionReason = reason.String
	if perms != "" {
		if err := json.Unmarshal([]byte(perms), &req.Permissions); err != nil {
			return nil, fmt.Errorf("decoding permissions of %s: %w", req.ID, err)
		}
	}
	if len(req.Permissions) == 0 {
		req.Permissions = nil
	}
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &req, nil
}

func marshalPermissions(perms []string) (string, error) {
	if perms == nil {
		perms = []string{}
	}
	b, err := json.Marshal(perms)
	if err != nil {
		return "", fmt.Errorf("encoding permissions: %w", err)
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
