package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for subscriber operations.
var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrAlreadySubscribed  = errors.New("email is already subscribed")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// SubscriberStatus is the subscription state of a newsletter recipient.
type SubscriberStatus string

const (
	SubscriberStatusActive       SubscriberStatus = "active"
	SubscriberStatusUnsubscribed SubscriberStatus = "unsubscribed"
)

// Subscriber is one newsletter recipient. Email is stored lowercase and is unique.
// swagger:model Subscriber
type Subscriber struct {
	ID             string           `json:"id"`
	Email          string           `json:"email"`
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name"`
	Source         string           `json:"source"`
	Status         SubscriberStatus `json:"status"`
	SubscribedAt   time.Time        `json:"subscribed_at"`
	UnsubscribedAt *time.Time       `json:"unsubscribed_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// SubscribeInput holds the fields accepted by the public subscribe endpoint.
type SubscribeInput struct {
	Email     string
	FirstName string
	LastName  string
	Source    string
}

// SubscriberRepository defines the interface for subscriber storage.
type SubscriberRepository interface {
	Create(ctx context.Context, subscriber *Subscriber) error
	GetByEmail(ctx context.Context, email string) (*Subscriber, error)
	// ListActive returns at most limit active subscribers ordered by subscription time.
	ListActive(ctx context.Context, limit int) ([]*Subscriber, error)
	List(ctx context.Context, status SubscriberStatus, params PaginationParams) ([]*Subscriber, int, error)
	UpdateStatus(ctx context.Context, id string, status SubscriberStatus, at time.Time) error
}

// SubscriberService defines the subscription lifecycle.
type SubscriberService interface {
	Subscribe(ctx context.Context, input SubscribeInput) (*Subscriber, error)
	Unsubscribe(ctx context.Context, email string) error
	UnsubscribeByToken(ctx context.Context, token string) error
	List(ctx context.Context, status SubscriberStatus, params PaginationParams) ([]*Subscriber, int, error)
}
