package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Jhoseto/factcheck-api/internal/models"
)

// SQLiteInsightRepository implements InsightRepository for SQLite/libsql.
type SQLiteInsightRepository struct {
	db *sql.DB
}

// NewSQLiteInsightRepository creates a new SQLite insight repository.
func NewSQLiteInsightRepository(db *sql.DB) *SQLiteInsightRepository {
	return &SQLiteInsightRepository{db: db}
}

func (r *SQLiteInsightRepository) Create(ctx context.Context, in *models.AnalysisInsight) error {
	query := `INSERT INTO analysis_insights (
		id, user_id, service_type, mode, target_url, status, error_code, error_message, retried,
		prompt_tokens, output_tokens, points_charged, model_id, pricing_version,
		generate_duration_ms, total_duration_ms, request_id, archive_key, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		in.ID, in.UserID, in.ServiceType, in.Mode, nullable(in.TargetURL),
		in.Status, nullable(in.ErrorCode), nullable(in.ErrorMessage), in.Retried,
		in.PromptTokens, in.OutputTokens, in.PointsCharged, nullable(in.ModelID), nullable(in.PricingVersion),
		in.GenerateDurationMs, in.TotalDurationMs, nullable(in.RequestID), nullable(in.ArchiveKey),
		in.CreatedAt.Format(time.RFC3339),
	)
	return err
}

func (r *SQLiteInsightRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.AnalysisInsight, error) {
	query := `SELECT id, user_id, service_type, mode, target_url, status, error_code, error_message, retried,
		prompt_tokens, output_tokens, points_charged, model_id, pricing_version,
		generate_duration_ms, total_duration_ms, request_id, archive_key, created_at
		FROM analysis_insights WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insights []*models.AnalysisInsight
	for rows.Next() {
		var in models.AnalysisInsight
		var targetURL, errorCode, errorMessage, modelID, pricingVersion, requestID, archiveKey sql.NullString
		var createdAt string
		if err := rows.Scan(&in.ID, &in.UserID, &in.ServiceType, &in.Mode, &targetURL,
			&in.Status, &errorCode, &errorMessage, &in.Retried,
			&in.PromptTokens, &in.OutputTokens, &in.PointsCharged, &modelID, &pricingVersion,
			&in.GenerateDurationMs, &in.TotalDurationMs, &requestID, &archiveKey, &createdAt); err != nil {
			return nil, err
		}
		in.TargetURL = targetURL.String
		in.ErrorCode = errorCode.String
		in.ErrorMessage = errorMessage.String
		in.ModelID = modelID.String
		in.PricingVersion = pricingVersion.String
		in.RequestID = requestID.String
		in.ArchiveKey = archiveKey.String
		in.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		insights = append(insights, &in)
	}
	return insights, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
