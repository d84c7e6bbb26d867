package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"bawabamail/internal/delivery/http/helpers"
	"bawabamail/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

const testCampaignID = "7d3c5c1e-5a0b-4a43-9a55-3f7c2a0e9b11"

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, data any) helpers.APIResponse {
	t.Helper()
	var raw struct {
		Data  json.RawMessage     `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&raw))
	if data != nil && raw.Error == nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return helpers.APIResponse{Data: raw.Data, Error: raw.Error}
}

// fakeCampaignService implements domain.CampaignService for handler tests.
type fakeCampaignService struct {
	campaign   *domain.Campaign
	campaigns  []*domain.Campaign
	total      int
	preview    *domain.CampaignPreview
	err        error
	lastInput  domain.CampaignInput
	lastPatch  domain.CampaignPatch
	lastStatus domain.CampaignStatus
	lastParams domain.PaginationParams
	lastEmail  string
	lastLocale string
	deletedID  string
}

func (f *fakeCampaignService) Create(ctx context.Context, input domain.CampaignInput) (*domain.Campaign, error) {
	f.lastInput = input
	return f.campaign, f.err
}

func (f *fakeCampaignService) Update(ctx context.Context, id string, patch domain.CampaignPatch) (*domain.Campaign, error) {
	f.lastPatch = patch
	return f.campaign, f.err
}

func (f *fakeCampaignService) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	return f.campaign, f.err
}

func (f *fakeCampaignService) List(ctx context.Context, status domain.CampaignStatus, params domain.PaginationParams) ([]*domain.Campaign, int, error) {
	f.lastStatus = status
	f.lastParams = params
	return f.campaigns, f.total, f.err
}

func (f *fakeCampaignService) Delete(ctx context.Context, id string) error {
	f.deletedID = id
	return f.err
}

func (f *fakeCampaignService) Duplicate(ctx context.Context, id string) (*domain.Campaign, error) {
	return f.campaign, f.err
}

func (f *fakeCampaignService) Preview(ctx context.Context, id, email, locale string) (*domain.CampaignPreview, error) {
	f.lastEmail = email
	f.lastLocale = locale
	return f.preview, f.err
}

// fakeSubscriberService implements domain.SubscriberService for handler tests.
type fakeSubscriberService struct {
	subscriber  *domain.Subscriber
	subscribers []*domain.Subscriber
	total       int
	err         error
	lastInput   domain.SubscribeInput
	lastEmail   string
	lastToken   string
	lastStatus  domain.SubscriberStatus
}

func (f *fakeSubscriberService) Subscribe(ctx context.Context, input domain.SubscribeInput) (*domain.Subscriber, error) {
	f.lastInput = input
	return f.subscriber, f.err
}

func (f *fakeSubscriberService) Unsubscribe(ctx context.Context, email string) error {
	f.lastEmail = email
	return f.err
}

func (f *fakeSubscriberService) UnsubscribeByToken(ctx context.Context, token string) error {
	f.lastToken = token
	return f.err
}

func (f *fakeSubscriberService) List(ctx context.Context, status domain.SubscriberStatus, params domain.PaginationParams) ([]*domain.Subscriber, int, error) {
	f.lastStatus = status
	return f.subscribers, f.total, f.err
}

// fakeAuthService implements domain.AuthService for handler tests.
type fakeAuthService struct {
	token string
	user  *domain.User
	err   error
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return f.token, f.user, f.err
}

func (f *fakeAuthService) CreateOperator(ctx context.Context, email, password, name, role string) (*domain.User, error) {
	return f.user, f.err
}
