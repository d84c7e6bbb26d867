package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"bawabamail/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeCampaignRepo implements domain.CampaignRepository in memory.
type fakeCampaignRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Campaign
	outcomes  map[string][]domain.CampaignOutcome
	nextID    int
	claimErr  error
	getErr    error
	createErr error
	updateErr error
	recordErr error
	unclaimed []string
	touches   map[string]int
	heartbeat map[string]time.Time
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{
		byID:      make(map[string]*domain.Campaign),
		outcomes:  make(map[string][]domain.CampaignOutcome),
		touches:   make(map[string]int),
		heartbeat: make(map[string]time.Time),
	}
}

func (f *fakeCampaignRepo) put(c *domain.Campaign) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.byID[c.ID] = &cp
}

func (f *fakeCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	c.ID = fmt.Sprintf("camp-%d", f.nextID)
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignRepo) List(ctx context.Context, status domain.CampaignStatus, params domain.PaginationParams) ([]*domain.Campaign, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.byID))
	for id, c := range f.byID {
		if status == "" || c.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*domain.Campaign, 0, len(ids))
	for _, id := range ids {
		cp := *f.byID[id]
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeCampaignRepo) Update(ctx context.Context, c *domain.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.byID[c.ID]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	if stored.Status.Terminal() {
		return domain.ErrCampaignLocked
	}
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeCampaignRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrCampaignNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeCampaignRepo) ClaimForDispatch(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}
	c, ok := f.byID[id]
	if !ok || c.Status != domain.CampaignStatusSendNow || c.DispatchStartedAt != nil {
		return false, nil
	}
	now := time.Now()
	c.DispatchStartedAt = &now
	f.heartbeat[id] = now
	return true, nil
}

func (f *fakeCampaignRepo) TouchClaim(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches[id]++
	f.heartbeat[id] = time.Now()
	return nil
}

func (f *fakeCampaignRepo) ReleaseStaleClaim(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.Status != domain.CampaignStatusSendNow || c.DispatchStartedAt == nil {
		return false, nil
	}
	if !f.heartbeat[id].Before(staleBefore) {
		return false, nil
	}
	c.DispatchStartedAt = nil
	delete(f.heartbeat, id)
	return true, nil
}

func (f *fakeCampaignRepo) RecordOutcome(ctx context.Context, id string, o domain.CampaignOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[id] = append(f.outcomes[id], o)
	if f.recordErr != nil {
		return f.recordErr
	}
	if c, ok := f.byID[id]; ok {
		c.Status = o.Status
		c.SentAt = o.SentAt
		c.SentCount = o.SentCount
		c.FailedCount = o.FailedCount
		c.ErrorLog = o.ErrorLog
	}
	return nil
}

func (f *fakeCampaignRepo) ListUnclaimed(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	return f.unclaimed, nil
}

// fakeSubscriberRepo implements domain.SubscriberRepository in memory, keyed by email.
type fakeSubscriberRepo struct {
	mu         sync.Mutex
	byEmail    map[string]*domain.Subscriber
	order      []string
	listErr    error
	limitSeen  int
	createErr  error
	updateErr  error
	statusSets []domain.SubscriberStatus
}

func newFakeSubscriberRepo(emails ...string) *fakeSubscriberRepo {
	f := &fakeSubscriberRepo{byEmail: make(map[string]*domain.Subscriber)}
	for i, e := range emails {
		f.byEmail[e] = &domain.Subscriber{ID: fmt.Sprintf("sub-%d", i+1), Email: e, Status: domain.SubscriberStatusActive}
		f.order = append(f.order, e)
	}
	return f
}

func (f *fakeSubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byEmail[s.Email]; ok {
		return domain.ErrAlreadySubscribed
	}
	s.ID = fmt.Sprintf("sub-%d", len(f.order)+1)
	cp := *s
	f.byEmail[s.Email] = &cp
	f.order = append(f.order, s.Email)
	return nil
}

func (f *fakeSubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byEmail[email]
	if !ok {
		return nil, domain.ErrSubscriberNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubscriberRepo) ListActive(ctx context.Context, limit int) ([]*domain.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limitSeen = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*domain.Subscriber, 0)
	for _, e := range f.order {
		if s := f.byEmail[e]; s.Status == domain.SubscriberStatusActive && len(out) < limit {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSubscriberRepo) List(ctx context.Context, status domain.SubscriberStatus, params domain.PaginationParams) ([]*domain.Subscriber, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Subscriber, 0)
	for _, e := range f.order {
		if s := f.byEmail[e]; status == "" || s.Status == status {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (f *fakeSubscriberRepo) UpdateStatus(ctx context.Context, id string, status domain.SubscriberStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, s := range f.byEmail {
		if s.ID == id {
			s.Status = status
			f.statusSets = append(f.statusSets, status)
			return nil
		}
	}
	return domain.ErrSubscriberNotFound
}

// fakeURLBuilder builds deterministic unsubscribe links. Emails listed in fail are rejected.
type fakeURLBuilder struct {
	fail map[string]bool
}

func (f *fakeURLBuilder) Build(email string) (string, error) {
	if f.fail[email] {
		return "", errors.New("email address is malformed")
	}
	return "https://site.test/api/newsletter/unsubscribe?token=" + strings.ToLower(email), nil
}

func (f *fakeURLBuilder) OneClickURL(email string) (string, error) {
	if f.fail[email] {
		return "", errors.New("email address is malformed")
	}
	return "https://site.test/api/newsletter/unsubscribe/one-click?token=" + strings.ToLower(email), nil
}

func (f *fakeURLBuilder) Parse(token string) (string, error) {
	if token == "" || strings.HasPrefix(token, "bad") {
		return "", domain.ErrInvalidToken
	}
	return token, nil
}

// fakeMailer records sent messages. Per-recipient errors and nil receipts are configurable.
type fakeMailer struct {
	mu            sync.Mutex
	sent          []*domain.OutboundEmail
	errFor        map[string]error
	notConfigured bool
	inFlight      int
	maxInFlight   int
	delay         time.Duration
}

func (f *fakeMailer) Send(ctx context.Context, e *domain.OutboundEmail) (*domain.SendReceipt, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.sent = append(f.sent, e)
	if err := f.errFor[e.To]; err != nil {
		return nil, err
	}
	if f.notConfigured {
		return nil, nil
	}
	return &domain.SendReceipt{Provider: "fake", MessageID: "msg-" + e.To}, nil
}

func (f *fakeMailer) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, e := range f.sent {
		out[i] = e.To
	}
	sort.Strings(out)
	return out
}

// fakeContentRenderer returns a fixed email, or an error for listed recipients.
type fakeContentRenderer struct {
	errFor map[string]error
}

func (f *fakeContentRenderer) Render(ctx context.Context, c *domain.Campaign, email, unsubscribeURL string) (*domain.RenderedEmail, error) {
	if err := f.errFor[email]; err != nil {
		return nil, err
	}
	return &domain.RenderedEmail{
		Subject: c.Subject.Resolve(localeFrom(ctx)),
		HTML:    "<p>hi</p><a href=\"" + unsubscribeURL + "\">unsubscribe</a>",
		Text:    "hi",
	}, nil
}

// fakeTemplates captures the data of the last render.
type fakeTemplates struct {
	last any
	err  error
}

func (f *fakeTemplates) Render(name string, data any) (string, string, string, error) {
	f.last = data
	if f.err != nil {
		return "", "", "", f.err
	}
	switch d := data.(type) {
	case *domain.CampaignEmailData:
		return d.Subject, string(d.ContentHTML), d.ContentText, nil
	case *domain.WelcomeMessageEmailData:
		return "welcome", "<p>" + d.Email + "</p>", d.Email, nil
	}
	return name, "", "", nil
}

// fakePublisher records published jobs.
type fakePublisher struct {
	mu   sync.Mutex
	jobs []domain.DispatchJob
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, job domain.DispatchJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

// fakeEmailService records welcome messages.
type fakeEmailService struct {
	mu      sync.Mutex
	welcome []*domain.WelcomeMessageEmailData
	err     error
}

func (f *fakeEmailService) SendWelcomeMessage(ctx context.Context, data *domain.WelcomeMessageEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcome = append(f.welcome, data)
	return f.err
}
