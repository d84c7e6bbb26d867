package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for campaign operations.
var (
	ErrCampaignNotFound        = errors.New("campaign not found")
	ErrCampaignLocked          = errors.New("campaign has already been dispatched and is read-only")
	ErrInvalidStatusTransition = errors.New("invalid campaign status transition")
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft   CampaignStatus = "draft"
	CampaignStatusSendNow CampaignStatus = "send_now"
	CampaignStatusSent    CampaignStatus = "sent"
	CampaignStatusFailed  CampaignStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusSendNow, CampaignStatusSent, CampaignStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the campaign has finished dispatching.
// Terminal campaigns are read-only for subject, body and status.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusSent || s == CampaignStatusFailed
}

// Editable reports whether an operator may set the campaign to s.
func (s CampaignStatus) Editable() bool {
	return s == CampaignStatusDraft || s == CampaignStatusSendNow
}

// WriteOperation is the kind of write that produced a campaign version.
type WriteOperation string

const (
	WriteOperationCreate WriteOperation = "create"
	WriteOperationUpdate WriteOperation = "update"
)

// Campaign is one outbound email blast.
// swagger:model Campaign
type Campaign struct {
	ID                string         `json:"id"`
	Subject           LocalizedText  `json:"subject"`
	Body              Content        `json:"body"`
	Status            CampaignStatus `json:"status"`
	SentAt            *time.Time     `json:"sent_at"`
	SentCount         int            `json:"sent_count"`
	FailedCount       int            `json:"failed_count"`
	ErrorLog          *string        `json:"error_log"`
	DispatchStartedAt *time.Time     `json:"dispatch_started_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// CampaignOutcome is the terminal state written back by the dispatcher.
type CampaignOutcome struct {
	Status      CampaignStatus
	SentAt      *time.Time
	SentCount   int
	FailedCount int
	ErrorLog    *string
}

// CampaignInput holds operator-supplied fields for creating a campaign.
type CampaignInput struct {
	Subject LocalizedText
	Body    Content
	Status  CampaignStatus
}

// CampaignPatch holds optional fields for updating a campaign. Nil fields are left unchanged.
type CampaignPatch struct {
	Subject *LocalizedText
	Body    *Content
	Status  *CampaignStatus
}

// CampaignPreview is the rendered email for a single address, returned without sending.
type CampaignPreview struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// CampaignRepository defines the interface for campaign storage.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *Campaign) error
	GetByID(ctx context.Context, id string) (*Campaign, error)
	List(ctx context.Context, status CampaignStatus, params PaginationParams) ([]*Campaign, int, error)
	Update(ctx context.Context, campaign *Campaign) error
	Delete(ctx context.Context, id string) error
	// ClaimForDispatch marks the campaign as being dispatched. It returns false when the
	// campaign is not in send_now or was already claimed.
	ClaimForDispatch(ctx context.Context, id string) (bool, error)
	// TouchClaim refreshes the heartbeat of a held dispatch claim.
	TouchClaim(ctx context.Context, id string) error
	// ReleaseStaleClaim drops the dispatch claim of a send_now campaign whose heartbeat is older
	// than staleBefore. It returns false when the claim is still live or there is none.
	ReleaseStaleClaim(ctx context.Context, id string, staleBefore time.Time) (bool, error)
	// RecordOutcome persists the dispatch result. It is the privileged write path used by the
	// dispatcher and never goes through the trigger detector.
	RecordOutcome(ctx context.Context, id string, outcome CampaignOutcome) error
	// ListUnclaimed returns ids of send_now campaigns without a dispatch claim last updated before olderThan.
	ListUnclaimed(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// CampaignService defines the operator-facing campaign operations.
type CampaignService interface {
	Create(ctx context.Context, input CampaignInput) (*Campaign, error)
	Update(ctx context.Context, id string, patch CampaignPatch) (*Campaign, error)
	GetByID(ctx context.Context, id string) (*Campaign, error)
	List(ctx context.Context, status CampaignStatus, params PaginationParams) ([]*Campaign, int, error)
	Delete(ctx context.Context, id string) error
	Duplicate(ctx context.Context, id string) (*Campaign, error)
	Preview(ctx context.Context, id, email, locale string) (*CampaignPreview, error)
}
