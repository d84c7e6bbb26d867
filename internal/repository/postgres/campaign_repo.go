package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bawabamail/internal/domain"
)

const campaignColumns = `id, subject, body, status, sent_at, sent_count, failed_count, error_log, dispatch_started_at, created_at, updated_at`

type campaignRepository struct {
	DB *sql.DB
}

func NewCampaignRepository(db *sql.DB) domain.CampaignRepository {
	return &campaignRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var subject, body []byte
	var status string
	var sentAt, startedAt sql.NullTime
	var errorLog sql.NullString
	err := row.Scan(&c.ID, &subject, &body, &status, &sentAt, &c.SentCount, &c.FailedCount,
		&errorLog, &startedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(subject, &c.Subject); err != nil {
		return nil, fmt.Errorf("decode subject of campaign %s: %w", c.ID, err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &c.Body); err != nil {
			return nil, fmt.Errorf("decode body of campaign %s: %w", c.ID, err)
		}
	}
	c.Status = domain.CampaignStatus(status)
	if sentAt.Valid {
		c.SentAt = &sentAt.Time
	}
	if startedAt.Valid {
		c.DispatchStartedAt = &startedAt.Time
	}
	if errorLog.Valid {
		c.ErrorLog = &errorLog.String
	}
	return c, nil
}

// encodeContent returns the JSONB value for c, or nil for an empty body.
func encodeContent(c domain.Content) (any, error) {
	if c.Kind == domain.ContentKindEmpty {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return b, nil
}

func (r *campaignRepository) Create(ctx context.Context, c *domain.Campaign) error {
	subject, err := json.Marshal(c.Subject)
	if err != nil {
		return fmt.Errorf("encode subject: %w", err)
	}
	body, err := encodeContent(c.Body)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO campaigns (subject, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, subject, body, string(c.Status), c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
}

func (r *campaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, err
	}
	return c, nil
}

// List returns one page of campaigns, newest first, and the total matching count.
// An empty status matches every campaign.
func (r *campaignRepository) List(ctx context.Context, status domain.CampaignStatus, params domain.PaginationParams) ([]*domain.Campaign, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE ($1 = '' OR status = $1)`
	if err := r.DB.QueryRowContext(ctx, countQuery, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.QueryContext(ctx, query, string(status), params.Limit(), params.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	campaigns := make([]*domain.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

// Update writes the operator-editable fields. Campaigns that reached a terminal status in the
// meantime are left untouched and reported as ErrCampaignLocked.
func (r *campaignRepository) Update(ctx context.Context, c *domain.Campaign) error {
	subject, err := json.Marshal(c.Subject)
	if err != nil {
		return fmt.Errorf("encode subject: %w", err)
	}
	body, err := encodeContent(c.Body)
	if err != nil {
		return err
	}
	query := `
		UPDATE campaigns
		SET subject = $1, body = $2, status = $3, updated_at = $4
		WHERE id = $5 AND status IN ('draft', 'send_now')
	`
	result, err := r.DB.ExecContext(ctx, query, subject, body, string(c.Status), c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, c.ID); err != nil {
		return err
	}
	return domain.ErrCampaignLocked
}

func (r *campaignRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM campaigns WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func (r *campaignRepository) ClaimForDispatch(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE campaigns
		SET dispatch_started_at = NOW(), dispatch_heartbeat_at = NOW()
		WHERE id = $1 AND status = 'send_now' AND dispatch_started_at IS NULL
	`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *campaignRepository) TouchClaim(ctx context.Context, id string) error {
	query := `
		UPDATE campaigns
		SET dispatch_heartbeat_at = NOW()
		WHERE id = $1 AND dispatch_started_at IS NOT NULL
	`
	_, err := r.DB.ExecContext(ctx, query, id)
	return err
}

// ReleaseStaleClaim treats a claim without a heartbeat as last seen when it was taken.
func (r *campaignRepository) ReleaseStaleClaim(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE campaigns
		SET dispatch_started_at = NULL, dispatch_heartbeat_at = NULL
		WHERE id = $1 AND status = 'send_now' AND dispatch_started_at IS NOT NULL
			AND COALESCE(dispatch_heartbeat_at, dispatch_started_at) < $2
	`
	result, err := r.DB.ExecContext(ctx, query, id, staleBefore)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *campaignRepository) RecordOutcome(ctx context.Context, id string, o domain.CampaignOutcome) error {
	var sentAt sql.NullTime
	if o.SentAt != nil {
		sentAt = sql.NullTime{Time: *o.SentAt, Valid: true}
	}
	var errorLog sql.NullString
	if o.ErrorLog != nil {
		errorLog = sql.NullString{String: *o.ErrorLog, Valid: true}
	}
	query := `
		UPDATE campaigns
		SET status = $1, sent_at = $2, sent_count = $3, failed_count = $4, error_log = $5, updated_at = NOW()
		WHERE id = $6
	`
	result, err := r.DB.ExecContext(ctx, query, string(o.Status), sentAt, o.SentCount, o.FailedCount, errorLog, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func (r *campaignRepository) ListUnclaimed(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM campaigns
		WHERE status = 'send_now' AND dispatch_started_at IS NULL AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
