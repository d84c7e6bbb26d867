package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"bawabamail/internal/domain"
)

const subscriberColumns = `id, email, first_name, last_name, source, status, subscribed_at, unsubscribed_at, created_at, updated_at`

type subscriberRepository struct {
	DB *sql.DB
}

func NewSubscriberRepository(db *sql.DB) domain.SubscriberRepository {
	return &subscriberRepository{DB: db}
}

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	var status string
	var unsubscribedAt sql.NullTime
	err := row.Scan(&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.Source, &status,
		&s.SubscribedAt, &unsubscribedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SubscriberStatus(status)
	if unsubscribedAt.Valid {
		s.UnsubscribedAt = &unsubscribedAt.Time
	}
	return s, nil
}

func (r *subscriberRepository) Create(ctx context.Context, s *domain.Subscriber) error {
	query := `
		INSERT INTO subscribers (email, first_name, last_name, source, status, subscribed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query, s.Email, s.FirstName, s.LastName, s.Source, string(s.Status),
		s.SubscribedAt, s.CreatedAt, s.UpdatedAt).Scan(&s.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domain.ErrAlreadySubscribed
		}
		return err
	}
	return nil
}

func (r *subscriberRepository) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE email = $1`
	s, err := scanSubscriber(r.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSubscriberNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *subscriberRepository) ListActive(ctx context.Context, limit int) ([]*domain.Subscriber, error) {
	query := `
		SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE status = 'active'
		ORDER BY subscribed_at, id
		LIMIT $1
	`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subscribers := make([]*domain.Subscriber, 0)
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subscribers = append(subscribers, s)
	}
	return subscribers, rows.Err()
}

// List returns one page of subscribers, newest first, and the total matching count.
// An empty status matches every subscriber.
func (r *subscriberRepository) List(ctx context.Context, status domain.SubscriberStatus, params domain.PaginationParams) ([]*domain.Subscriber, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM subscribers WHERE ($1 = '' OR status = $1)`
	if err := r.DB.QueryRowContext(ctx, countQuery, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE ($1 = '' OR status = $1)
		ORDER BY subscribed_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.QueryContext(ctx, query, string(status), params.Limit(), params.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	subscribers := make([]*domain.Subscriber, 0)
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, 0, err
		}
		subscribers = append(subscribers, s)
	}
	return subscribers, total, rows.Err()
}

// UpdateStatus moves a subscriber between active and unsubscribed. Reactivation resets
// subscribed_at to at and clears unsubscribed_at.
func (r *subscriberRepository) UpdateStatus(ctx context.Context, id string, status domain.SubscriberStatus, at time.Time) error {
	var query string
	switch status {
	case domain.SubscriberStatusActive:
		query = `
			UPDATE subscribers
			SET status = $1, subscribed_at = $2, unsubscribed_at = NULL, updated_at = $2
			WHERE id = $3
		`
	case domain.SubscriberStatusUnsubscribed:
		query = `
			UPDATE subscribers
			SET status = $1, unsubscribed_at = $2, updated_at = $2
			WHERE id = $3
		`
	default:
		return domain.ErrInvalidInput
	}
	result, err := r.DB.ExecContext(ctx, query, string(status), at, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrSubscriberNotFound
	}
	return nil
}
