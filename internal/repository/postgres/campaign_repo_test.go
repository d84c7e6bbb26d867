package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bawabamail/internal/domain"
)

var campaignRowColumns = []string{"id", "subject", "body", "status", "sent_at", "sent_count", "failed_count", "error_log", "dispatch_started_at", "created_at", "updated_at"}

func TestCampaignRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		body    domain.Content
		bodyArg any
		mockErr error
		wantID  string
		wantErr bool
	}{
		{
			name:    "plain body",
			body:    domain.PlainContent("مرحبا"),
			bodyArg: []byte(`"مرحبا"`),
			wantID:  "camp-1",
		},
		{
			name:    "empty body stored as null",
			body:    domain.Content{},
			bodyArg: nil,
			wantID:  "camp-2",
		},
		{
			name:    "db error",
			body:    domain.PlainContent("x"),
			bodyArg: sqlmock.AnyArg(),
			mockErr: sql.ErrConnDone,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			exp := mock.ExpectQuery(`INSERT INTO campaigns \(subject, body, status, created_at, updated_at\)`).
				WithArgs([]byte(`{"ar":"عنوان"}`), tt.bodyArg, "send_now", now, now)
			if tt.mockErr != nil {
				exp.WillReturnError(tt.mockErr)
			} else {
				exp.WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tt.wantID))
			}

			c := &domain.Campaign{
				Subject:   domain.LocalizedText{"ar": "عنوان"},
				Body:      tt.body,
				Status:    domain.CampaignStatusSendNow,
				CreatedAt: now,
				UpdatedAt: now,
			}
			err = NewCampaignRepository(db).Create(ctx, c)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, c.ID)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCampaignRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	sent := time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC)

	t.Run("decodes row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, subject, body, status`).
			WithArgs("camp-1").
			WillReturnRows(sqlmock.NewRows(campaignRowColumns).AddRow(
				"camp-1", []byte(`{"ar":"عنوان","en":"Title"}`), []byte(`{"root":{"children":[]}}`), "failed",
				sent, 3, 1, "Failed to send to ab***@x.com: boom", sent, created, sent,
			))

		c, err := NewCampaignRepository(db).GetByID(ctx, "camp-1")
		require.NoError(t, err)
		assert.Equal(t, "Title", c.Subject.Resolve("en"))
		assert.Equal(t, domain.ContentKindDocument, c.Body.Kind)
		assert.Equal(t, domain.CampaignStatusFailed, c.Status)
		require.NotNil(t, c.SentAt)
		assert.Equal(t, sent, *c.SentAt)
		assert.Equal(t, 3, c.SentCount)
		assert.Equal(t, 1, c.FailedCount)
		require.NotNil(t, c.ErrorLog)
		assert.Contains(t, *c.ErrorLog, "ab***@x.com")
		require.NotNil(t, c.DispatchStartedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("null optional columns", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, subject, body, status`).
			WithArgs("camp-2").
			WillReturnRows(sqlmock.NewRows(campaignRowColumns).AddRow(
				"camp-2", []byte(`{"ar":"عنوان"}`), nil, "draft", nil, 0, 0, nil, nil, created, created,
			))

		c, err := NewCampaignRepository(db).GetByID(ctx, "camp-2")
		require.NoError(t, err)
		assert.True(t, c.Body.IsEmpty())
		assert.Nil(t, c.SentAt)
		assert.Nil(t, c.ErrorLog)
		assert.Nil(t, c.DispatchStartedAt)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, subject, body, status`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err = NewCampaignRepository(db).GetByID(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrCampaignNotFound)
	})

	t.Run("corrupt subject", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, subject, body, status`).
			WithArgs("camp-3").
			WillReturnRows(sqlmock.NewRows(campaignRowColumns).AddRow(
				"camp-3", []byte(`[1]`), nil, "draft", nil, 0, 0, nil, nil, created, created,
			))

		_, err = NewCampaignRepository(db).GetByID(ctx, "camp-3")
		require.Error(t, err)
	})
}

func TestCampaignRepository_List(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns`).
		WithArgs("draft").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(`SELECT .* FROM campaigns\s+WHERE \(\$1 = '' OR status = \$1\)\s+ORDER BY created_at DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs("draft", 20, 20).
		WillReturnRows(sqlmock.NewRows(campaignRowColumns).AddRow(
			"camp-21", []byte(`{"ar":"عنوان"}`), nil, "draft", nil, 0, 0, nil, nil, created, created,
		))

	campaigns, total, err := NewCampaignRepository(db).List(ctx, domain.CampaignStatusDraft, domain.PaginationParams{Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "camp-21", campaigns[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_Update(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := &domain.Campaign{
		ID:        "camp-1",
		Subject:   domain.LocalizedText{"ar": "عنوان"},
		Body:      domain.PlainContent("نص"),
		Status:    domain.CampaignStatusSendNow,
		UpdatedAt: now,
	}

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "success",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE campaigns\s+SET subject = \$1, body = \$2, status = \$3, updated_at = \$4\s+WHERE id = \$5 AND status IN \('draft', 'send_now'\)`).
					WithArgs([]byte(`{"ar":"عنوان"}`), []byte(`"نص"`), "send_now", now, "camp-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "terminal campaign is locked",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE campaigns`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT id, subject, body, status`).
					WithArgs("camp-1").
					WillReturnRows(sqlmock.NewRows(campaignRowColumns).AddRow(
						"camp-1", []byte(`{"ar":"عنوان"}`), nil, "sent", now, 2, 0, nil, now, now, now,
					))
			},
			wantErr: domain.ErrCampaignLocked,
		},
		{
			name: "missing campaign",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE campaigns`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT id, subject, body, status`).
					WithArgs("camp-1").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: domain.ErrCampaignNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.mock(mock)

			err = NewCampaignRepository(db).Update(ctx, c)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCampaignRepository_Delete(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM campaigns WHERE id = \$1`).WithArgs("camp-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM campaigns WHERE id = \$1`).WithArgs("camp-2").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCampaignRepository(db)
	require.NoError(t, repo.Delete(ctx, "camp-1"))
	require.ErrorIs(t, repo.Delete(ctx, "camp-2"), domain.ErrCampaignNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_ClaimForDispatch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		result    func(exp *sqlmock.ExpectedExec)
		wantClaim bool
		wantErr   bool
	}{
		{name: "claimed", result: func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 1)) }, wantClaim: true},
		{name: "already claimed or not send_now", result: func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 0)) }},
		{name: "db error", result: func(e *sqlmock.ExpectedExec) { e.WillReturnError(errors.New("conn reset")) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.result(mock.ExpectExec(`UPDATE campaigns\s+SET dispatch_started_at = NOW\(\), dispatch_heartbeat_at = NOW\(\)\s+WHERE id = \$1 AND status = 'send_now' AND dispatch_started_at IS NULL`).
				WithArgs("camp-1"))

			claimed, err := NewCampaignRepository(db).ClaimForDispatch(ctx, "camp-1")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantClaim, claimed)
		})
	}
}

func TestCampaignRepository_TouchClaim(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE campaigns\s+SET dispatch_heartbeat_at = NOW\(\)\s+WHERE id = \$1 AND dispatch_started_at IS NOT NULL`).
		WithArgs("camp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewCampaignRepository(db).TouchClaim(context.Background(), "camp-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_ReleaseStaleClaim(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		result      func(exp *sqlmock.ExpectedExec)
		wantRelease bool
		wantErr     bool
	}{
		{name: "stale claim released", result: func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 1)) }, wantRelease: true},
		{name: "live claim kept", result: func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 0)) }},
		{name: "db error", result: func(e *sqlmock.ExpectedExec) { e.WillReturnError(errors.New("conn reset")) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.result(mock.ExpectExec(`UPDATE campaigns\s+SET dispatch_started_at = NULL, dispatch_heartbeat_at = NULL\s+WHERE id = \$1 AND status = 'send_now' AND dispatch_started_at IS NOT NULL\s+AND COALESCE\(dispatch_heartbeat_at, dispatch_started_at\) < \$2`).
				WithArgs("camp-1", cutoff))

			released, err := NewCampaignRepository(db).ReleaseStaleClaim(ctx, "camp-1", cutoff)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRelease, released)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCampaignRepository_RecordOutcome(t *testing.T) {
	ctx := context.Background()
	sent := time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC)
	log := "Campaign error: boom"

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE campaigns\s+SET status = \$1, sent_at = \$2, sent_count = \$3, failed_count = \$4, error_log = \$5`).
		WithArgs("sent", sent, 10, 0, nil, "camp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE campaigns`).
		WithArgs("failed", nil, 0, 0, log, "camp-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCampaignRepository(db)
	require.NoError(t, repo.RecordOutcome(ctx, "camp-1", domain.CampaignOutcome{
		Status: domain.CampaignStatusSent, SentAt: &sent, SentCount: 10,
	}))
	err = repo.RecordOutcome(ctx, "camp-2", domain.CampaignOutcome{Status: domain.CampaignStatusFailed, ErrorLog: &log})
	require.ErrorIs(t, err, domain.ErrCampaignNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_ListUnclaimed(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id\s+FROM campaigns\s+WHERE status = 'send_now' AND dispatch_started_at IS NULL AND updated_at < \$1`).
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("camp-1").AddRow("camp-2"))

	ids, err := NewCampaignRepository(db).ListUnclaimed(ctx, cutoff, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"camp-1", "camp-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
