// Package storage implements the persistence collaborator for reviews,
// discussions, file records, and LLM conversation turns.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/i18n"
)

// Store defines the database operations of the review workflow. Absence is a
// normal value for the lookup operations, not an error.
type Store interface {
	// UpsertReview creates the review row for (project, merge request) or
	// updates its status in place, and returns the row id.
	UpsertReview(ctx context.Context, projectID, mrIID int, status core.ReviewStatus) (int64, error)
	GetReview(ctx context.Context, projectID, mrIID int) (*core.Review, error)

	// GetDiscussionID returns the host-assigned discussion id recorded for a
	// file, with ok=false when the file has never been reviewed.
	GetDiscussionID(ctx context.Context, projectID, mrIID int, filePath string) (string, bool, error)
	CreateDiscussion(ctx context.Context, projectID, mrIID int, discussionID, filePath string) (int64, error)

	CreateFileRecord(ctx context.Context, discussionID string, verdict *core.Verdict, llmModel string) error
	GetLatestFileRecord(ctx context.Context, discussionID string) (*core.FileRecord, error)

	CreateLLMMessage(ctx context.Context, discussionID, role, content string) error
	GetLLMMessages(ctx context.Context, discussionID string) ([]core.ChatMessage, error)
}

type postgresStore struct {
	db *sqlx.DB
	tr *i18n.Translator
}

// NewStore creates a Postgres-backed Store. Failures are wrapped with
// localized context naming the operation and the entity keys involved.
func NewStore(db *sqlx.DB, tr *i18n.Translator) Store {
	return &postgresStore{db: db, tr: tr}
}

func (s *postgresStore) UpsertReview(ctx context.Context, projectID, mrIID int, status core.ReviewStatus) (int64, error) {
	query := `
		INSERT INTO reviews (project_id, merge_request_iid, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, merge_request_iid)
		DO UPDATE SET status = EXCLUDED.status, updated_at = now()
		RETURNING id`

	var id int64
	if err := s.db.QueryRowContext(ctx, query, projectID, mrIID, status).Scan(&id); err != nil {
		return 0, s.wrap("response.update_or_create_review_failed", err, map[string]any{
			"ProjectID":       projectID,
			"MergeRequestIID": mrIID,
		})
	}
	return id, nil
}

func (s *postgresStore) GetReview(ctx context.Context, projectID, mrIID int) (*core.Review, error) {
	query := `
		SELECT id, project_id, merge_request_iid, status, created_at, updated_at
		FROM reviews
		WHERE project_id = $1 AND merge_request_iid = $2`

	var r core.Review
	err := s.db.GetContext(ctx, &r, query, projectID, mrIID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, s.wrap("response.get_review_failed", err, map[string]any{
			"ProjectID":       projectID,
			"MergeRequestIID": mrIID,
		})
	}
	return &r, nil
}

func (s *postgresStore) GetDiscussionID(ctx context.Context, projectID, mrIID int, filePath string) (string, bool, error) {
	query := `
		SELECT d.discussion_id
		FROM review_discussions d
		JOIN reviews r ON r.id = d.review_id
		WHERE r.project_id = $1 AND r.merge_request_iid = $2 AND d.file_path = $3`

	var discussionID string
	err := s.db.QueryRowContext(ctx, query, projectID, mrIID, filePath).Scan(&discussionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, s.wrap("response.get_discussion_id_failed", err, map[string]any{
			"ProjectID":       projectID,
			"MergeRequestIID": mrIID,
			"FilePath":        filePath,
		})
	}
	return discussionID, true, nil
}

func (s *postgresStore) CreateDiscussion(ctx context.Context, projectID, mrIID int, discussionID, filePath string) (int64, error) {
	var reviewID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM reviews WHERE project_id = $1 AND merge_request_iid = $2`,
		projectID, mrIID).Scan(&reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s", s.tr.T("response.review_not_found", map[string]any{
				"ProjectID":       projectID,
				"MergeRequestIID": mrIID,
			}))
		}
		return 0, s.wrap("response.get_review_failed", err, map[string]any{
			"ProjectID":       projectID,
			"MergeRequestIID": mrIID,
		})
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO review_discussions (review_id, discussion_id, file_path) VALUES ($1, $2, $3) RETURNING id`,
		reviewID, discussionID, filePath).Scan(&id)
	if err != nil {
		return 0, s.wrap("response.create_review_discussion_failed", err, map[string]any{
			"DiscussionID": discussionID,
			"FilePath":     filePath,
		})
	}
	return id, nil
}

func (s *postgresStore) CreateFileRecord(ctx context.Context, discussionID string, verdict *core.Verdict, llmModel string) error {
	rowID, err := s.discussionRowID(ctx, discussionID)
	if err != nil {
		return err
	}

	issues, err := json.Marshal(verdict.Issues)
	if err != nil {
		return fmt.Errorf("failed to encode issues: %w", err)
	}
	suggestions, err := json.Marshal(verdict.Suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_file_records
			(review_discussion_id, approved, score, issues, suggestions, summary, llm_model)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rowID, verdict.Approved, verdict.Score, issues, suggestions, verdict.Summary, llmModel)
	if err != nil {
		return s.wrap("response.create_review_file_record_failed", err, map[string]any{
			"DiscussionID": discussionID,
		})
	}
	return nil
}

func (s *postgresStore) GetLatestFileRecord(ctx context.Context, discussionID string) (*core.FileRecord, error) {
	query := `
		SELECT fr.id, fr.review_discussion_id, fr.approved, fr.score,
		       fr.issues, fr.suggestions, fr.summary, fr.llm_model, fr.created_at
		FROM review_file_records fr
		JOIN review_discussions d ON d.id = fr.review_discussion_id
		WHERE d.discussion_id = $1
		ORDER BY fr.created_at DESC, fr.id DESC
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, discussionID)

	var rec core.FileRecord
	var issues, suggestions []byte
	err := row.Scan(&rec.ID, &rec.ReviewDiscussionID, &rec.Approved, &rec.Score,
		&issues, &suggestions, &rec.Summary, &rec.LLMModel, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, s.wrap("response.get_review_file_record_failed", err, map[string]any{
			"DiscussionID": discussionID,
		})
	}

	if err := json.Unmarshal(issues, &rec.Issues); err != nil {
		return nil, fmt.Errorf("failed to decode issues: %w", err)
	}
	if err := json.Unmarshal(suggestions, &rec.Suggestions); err != nil {
		return nil, fmt.Errorf("failed to decode suggestions: %w", err)
	}
	return &rec, nil
}

func (s *postgresStore) CreateLLMMessage(ctx context.Context, discussionID, role, content string) error {
	rowID, err := s.discussionRowID(ctx, discussionID)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_file_llm_messages (review_discussion_id, role, content) VALUES ($1, $2, $3)`,
		rowID, role, content)
	if err != nil {
		return s.wrap("response.create_review_file_llm_message_failed", err, map[string]any{
			"DiscussionID": discussionID,
		})
	}
	return nil
}

func (s *postgresStore) GetLLMMessages(ctx context.Context, discussionID string) ([]core.ChatMessage, error) {
	query := `
		SELECT m.role, m.content
		FROM review_file_llm_messages m
		JOIN review_discussions d ON d.id = m.review_discussion_id
		WHERE d.discussion_id = $1
		ORDER BY m.id`

	rows, err := s.db.QueryContext(ctx, query, discussionID)
	if err != nil {
		return nil, s.wrap("response.get_review_file_llm_messages_failed", err, map[string]any{
			"DiscussionID": discussionID,
		})
	}
	defer rows.Close()

	var messages []core.ChatMessage
	for rows.Next() {
		var m core.ChatMessage
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, s.wrap("response.get_review_file_llm_messages_failed", err, map[string]any{
				"DiscussionID": discussionID,
			})
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("response.get_review_file_llm_messages_failed", err, map[string]any{
			"DiscussionID": discussionID,
		})
	}
	return messages, nil
}

func (s *postgresStore) discussionRowID(ctx context.Context, discussionID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM review_discussions WHERE discussion_id = $1`, discussionID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s", s.tr.T("response.review_discussion_not_found", map[string]any{
				"DiscussionID": discussionID,
			}))
		}
		return 0, s.wrap("response.get_review_discussion_id_failed", err, map[string]any{
			"DiscussionID": discussionID,
		})
	}
	return id, nil
}

// wrap builds a localized operation message around the underlying error while
// keeping the chain intact for errors.Is/As.
func (s *postgresStore) wrap(key string, err error, data map[string]any) error {
	data["Error"] = err.Error()
	return fmt.Errorf("%s: %w", s.tr.T(key, data), err)
}
