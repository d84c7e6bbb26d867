package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	h "bawabamail/internal/delivery/http/helpers"
	"bawabamail/internal/domain"
)

// CreateCampaignRequest is the request body for POST /campaigns.
// Subject is a string or a locale map; body is a string, a rich-text document or a locale map.
type CreateCampaignRequest struct {
	Subject domain.LocalizedText `json:"subject" swaggertype:"object"`
	Body    domain.Content       `json:"body" swaggertype:"object"`
	Status  string               `json:"status,omitempty" example:"send_now"`
}

// Validate implements Validator.
func (req CreateCampaignRequest) Validate() []string {
	var errs []string
	if req.Subject.IsEmpty() {
		errs = append(errs, "subject is required")
	}
	if req.Body.IsEmpty() {
		errs = append(errs, "body is required")
	}
	if req.Status != "" && !domain.CampaignStatus(req.Status).Editable() {
		errs = append(errs, `status must be "draft" or "send_now"`)
	}
	return errs
}

// UpdateCampaignRequest is the request body for PATCH /campaigns/{id}. Omitted fields are unchanged.
type UpdateCampaignRequest struct {
	Subject *domain.LocalizedText `json:"subject,omitempty" swaggertype:"object"`
	Body    *domain.Content       `json:"body,omitempty" swaggertype:"object"`
	Status  *string               `json:"status,omitempty" example:"send_now"`
}

// Validate implements Validator.
func (req UpdateCampaignRequest) Validate() []string {
	var errs []string
	if req.Subject == nil && req.Body == nil && req.Status == nil {
		errs = append(errs, "at least one of subject, body or status is required")
	}
	if req.Subject != nil && req.Subject.IsEmpty() {
		errs = append(errs, "subject cannot be empty")
	}
	if req.Body != nil && req.Body.IsEmpty() {
		errs = append(errs, "body cannot be empty")
	}
	return errs
}

// PreviewCampaignRequest is the request body for POST /campaigns/{id}/preview.
type PreviewCampaignRequest struct {
	Email  string `json:"email" example:"reader@example.com"`
	Locale string `json:"locale,omitempty" example:"ar"`
}

// Validate implements Validator.
func (req PreviewCampaignRequest) Validate() []string {
	if strings.TrimSpace(req.Email) == "" {
		return []string{"email is required"}
	}
	return nil
}

type CampaignController struct {
	Logger  *slog.Logger
	Service domain.CampaignService
}

func NewCampaignController(logger *slog.Logger, svc domain.CampaignService) *CampaignController {
	return &CampaignController{
		Logger:  logger,
		Service: svc,
	}
}

// Create godoc
// @Summary Create a campaign
// @Description Create a newsletter campaign. Status defaults to send_now, which queues the campaign for dispatch immediately.
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateCampaignRequest true "Campaign"
// @Success 201 {object} helpers.APIResponse "data contains the created campaign"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /campaigns [post]
func (c *CampaignController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	campaign, err := c.Service.Create(r.Context(), domain.CampaignInput{
		Subject: req.Subject,
		Body:    req.Body,
		Status:  domain.CampaignStatus(req.Status),
	})
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, campaign)
}

// List godoc
// @Summary List campaigns
// @Description Paginated list of campaigns, newest first, optionally filtered by status.
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param status query string false "draft, send_now, sent or failed"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data contains items and pagination"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /campaigns [get]
func (c *CampaignController) List(w http.ResponseWriter, r *http.Request) {
	q := h.ParseListQuery(r)
	campaigns, total, err := c.Service.List(r.Context(), domain.CampaignStatus(q.Status), q.Params)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, h.NewListResponse(campaigns, q.Params, total))
}

// Get godoc
// @Summary Get a campaign
// @Description Campaign with its dispatch outcome (counts, error log, sent time).
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Success 200 {object} helpers.APIResponse "data contains the campaign"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /campaigns/{id} [get]
func (c *CampaignController) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(w, id) {
		return
	}
	campaign, err := c.Service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, campaign)
}

// Update godoc
// @Summary Update a campaign
// @Description Partially update a draft or send_now campaign. Setting status to send_now queues it for dispatch. Sent and failed campaigns are read-only.
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Param body body UpdateCampaignRequest true "Fields to change"
// @Success 200 {object} helpers.APIResponse "data contains the updated campaign"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (campaign already dispatched)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /campaigns/{id} [patch]
func (c *CampaignController) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(w, id) {
		return
	}
	var req UpdateCampaignRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	patch := domain.CampaignPatch{Subject: req.Subject, Body: req.Body}
	if req.Status != nil {
		status := domain.CampaignStatus(strings.TrimSpace(*req.Status))
		patch.Status = &status
	}
	campaign, err := c.Service.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, campaign)
}

// Delete godoc
// @Summary Delete a campaign
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Success 204 "No Content"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /campaigns/{id} [delete]
func (c *CampaignController) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(w, id) {
		return
	}
	if err := c.Service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Duplicate godoc
// @Summary Duplicate a campaign
// @Description Copy subject and body into a new draft. This is how a failed campaign is sent again.
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Success 201 {object} helpers.APIResponse "data contains the new draft"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /campaigns/{id}/duplicate [post]
func (c *CampaignController) Duplicate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(w, id) {
		return
	}
	campaign, err := c.Service.Duplicate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, campaign)
}

// Preview godoc
// @Summary Preview a campaign
// @Description Render the email one address would receive, without sending it.
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Param body body PreviewCampaignRequest true "Recipient"
// @Success 200 {object} helpers.APIResponse "data contains subject, html and text"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /campaigns/{id}/preview [post]
func (c *CampaignController) Preview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(w, id) {
		return
	}
	var req PreviewCampaignRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	preview, err := c.Service.Preview(r.Context(), id, req.Email, strings.TrimSpace(req.Locale))
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, preview)
}
