package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

var _ repository.ChallengeRepository = (*DB)(nil)

func (db *DB) CreateRequest(ctx context.Context, r *model.ChallengeRequest) error {
	if r.ID == "" {
		r.ID = xid.New().String()
	}
	if r.Status == "" {
		r.Status = model.RequestPending
	}
	r.CreatedAt = time.Now()

	wordIDs, err := json.Marshal(r.WordIDs)
	if err != nil {
		return fmt.Errorf("sqlite: encoding word ids: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO challenge_requests (id, student_id, tutor_id, request_type,
			topic, message, word_ids, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StudentID, r.TutorID, r.RequestType,
		r.Topic, r.Message, string(wordIDs), r.Status, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting challenge request: %w", err)
	}
	return nil
}

func scanRequest(scan func(dest ...any) error) (*model.ChallengeRequest, error) {
	var r model.ChallengeRequest
	var wordIDs string
	if err := scan(&r.ID, &r.StudentID, &r.TutorID, &r.RequestType,
		&r.Topic, &r.Message, &wordIDs, &r.Status, &r.CreatedAt); err != nil {
		return nil, err
	}
	if wordIDs != "" {
		if err := json.Unmarshal([]byte(wordIDs), &r.WordIDs); err != nil {
			return nil, fmt.Errorf("sqlite: decoding word ids: %w", err)
		}
	}
	return &r, nil
}

func (db *DB) PendingRequestForStudent(ctx context.Context, studentID string) (*model.ChallengeRequest, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, student_id, tutor_id, request_type, topic, message, word_ids, status, created_at
		 FROM challenge_requests
		 WHERE student_id = ? AND status = ?
		 LIMIT 1`,
		studentID, model.RequestPending,
	)
	r, err := scanRequest(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting pending request: %w", err)
	}
	return r, nil
}

func (db *DB) GetRequest(ctx context.Context, id string) (*model.ChallengeRequest, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, student_id, tutor_id, request_type, topic, message, word_ids, status, created_at
		 FROM challenge_requests
		 WHERE id = ?`,
		id,
	)
	r, err := scanRequest(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("challenge request", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting challenge request: %w", err)
	}
	return r, nil
}

func (db *DB) ListRequestsForTutor(ctx context.Context, tutorID string, opts repository.ListOptions) ([]model.ChallengeRequest, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, student_id, tutor_id, request_type, topic, message, word_ids, status, created_at
		 FROM challenge_requests
		 WHERE tutor_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		tutorID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing challenge requests: %w", err)
	}
	defer rows.Close()

	var requests []model.ChallengeRequest
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning challenge request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func (db *DB) UpdateRequestStatus(ctx context.Context, id, status string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE challenge_requests SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating request status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("challenge request", id)
	}
	return nil
}

func (db *DB) CreateChallenge(ctx context.Context, c *model.Challenge) error {
	if c.ID == "" {
		c.ID = xid.New().String()
	}
	if c.Status == "" {
		c.Status = model.ChallengeAssigned
	}
	c.CreatedAt = time.Now()

	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("sqlite: encoding challenge items: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO challenges (id, tutor_id, student_id, request_id, title, type,
			items, status, score, total, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TutorID, c.StudentID, c.RequestID, c.Title, c.Type,
		string(items), c.Status, c.Score, c.Total, c.CreatedAt,
		timeArg(c.StartedAt), timeArg(c.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting challenge: %w", err)
	}
	return nil
}

func scanChallenge(scan func(dest ...any) error) (*model.Challenge, error) {
	var c model.Challenge
	var items string
	var started, completed sql.NullTime
	if err := scan(&c.ID, &c.TutorID, &c.StudentID, &c.RequestID, &c.Title, &c.Type,
		&items, &c.Status, &c.Score, &c.Total, &c.CreatedAt, &started, &completed); err != nil {
		return nil, err
	}
	if items != "" {
		if err := json.Unmarshal([]byte(items), &c.Items); err != nil {
			return nil, fmt.Errorf("sqlite: decoding challenge items: %w", err)
		}
	}
	c.StartedAt = timePtr(started)
	c.CompletedAt = timePtr(completed)
	return &c, nil
}

const challengeColumns = `id, tutor_id, student_id, request_id, title, type,
	items, status, score, total, created_at, started_at, completed_at`

func (db *DB) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("challenge", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting challenge: %w", err)
	}
	return c, nil
}

func (db *DB) ListChallengesForStudent(ctx context.Context, studentID string, opts repository.ListOptions) ([]model.Challenge, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+challengeColumns+`
		 FROM challenges
		 WHERE student_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		studentID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing challenges: %w", err)
	}
	defer rows.Close()

	var challenges []model.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning challenge: %w", err)
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

func (db *DB) UpdateChallenge(ctx context.Context, c *model.Challenge) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("sqlite: encoding challenge items: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE challenges SET title = ?, type = ?, items = ?, status = ?,
			score = ?, total = ?, started_at = ?, completed_at = ?
		 WHERE id = ?`,
		c.Title, c.Type, string(items), c.Status,
		c.Score, c.Total, timeArg(c.StartedAt), timeArg(c.CompletedAt),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating challenge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("challenge", c.ID)
	}
	return nil
}
