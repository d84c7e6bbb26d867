package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	h "bawabamail/internal/delivery/http/helpers"
	"bawabamail/internal/domain"
)

// SubscribeRequest is the request body for POST /api/newsletter/subscribe.
type SubscribeRequest struct {
	Email     string `json:"email" example:"reader@example.com"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Source    string `json:"source,omitempty" example:"footer"`
}

// Validate implements Validator.
func (req SubscribeRequest) Validate() []string {
	if strings.TrimSpace(req.Email) == "" {
		return []string{"email is required"}
	}
	return nil
}

// UnsubscribeRequest is the request body for POST /api/newsletter/unsubscribe.
type UnsubscribeRequest struct {
	Email string `json:"email" example:"reader@example.com"`
}

// Validate implements Validator.
func (req UnsubscribeRequest) Validate() []string {
	if strings.TrimSpace(req.Email) == "" {
		return []string{"email is required"}
	}
	return nil
}

// SubscriptionResponse is the public view of a subscription change.
type SubscriptionResponse struct {
	Email  string                  `json:"email,omitempty"`
	Status domain.SubscriberStatus `json:"status"`
}

// NewsletterController serves the public subscribe and unsubscribe endpoints.
type NewsletterController struct {
	Logger  *slog.Logger
	Service domain.SubscriberService
}

func NewNewsletterController(logger *slog.Logger, svc domain.SubscriberService) *NewsletterController {
	return &NewsletterController{
		Logger:  logger,
		Service: svc,
	}
}

// Subscribe godoc
// @Summary Subscribe to the newsletter
// @Description Register an address, or reactivate one that unsubscribed. A welcome email is sent.
// @Tags newsletter
// @Accept json
// @Produce json
// @Param body body SubscribeRequest true "Subscriber"
// @Success 201 {object} helpers.APIResponse "data contains email and status"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (already subscribed)"
// @Failure 429 {object} helpers.APIResponse "error.code: rate_limited"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/newsletter/subscribe [post]
func (c *NewsletterController) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	sub, err := c.Service.Subscribe(r.Context(), domain.SubscribeInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Source:    req.Source,
	})
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, SubscriptionResponse{Email: sub.Email, Status: sub.Status})
}

// Unsubscribe godoc
// @Summary Unsubscribe by email
// @Tags newsletter
// @Accept json
// @Produce json
// @Param body body UnsubscribeRequest true "Address"
// @Success 200 {object} helpers.APIResponse "data.status: unsubscribed"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 429 {object} helpers.APIResponse "error.code: rate_limited"
// @Router /api/newsletter/unsubscribe [post]
func (c *NewsletterController) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := c.Service.Unsubscribe(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, SubscriptionResponse{Status: domain.SubscriberStatusUnsubscribed})
}

// UnsubscribeByToken godoc
// @Summary Unsubscribe from an email link
// @Description Target of the unsubscribe link in every campaign email.
// @Tags newsletter
// @Produce json
// @Param token query string true "Signed unsubscribe token"
// @Success 200 {object} helpers.APIResponse "data.status: unsubscribed"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/newsletter/unsubscribe [get]
func (c *NewsletterController) UnsubscribeByToken(w http.ResponseWriter, r *http.Request) {
	c.unsubscribeByToken(w, r)
}

// OneClickUnsubscribe godoc
// @Summary One-click unsubscribe (RFC 8058)
// @Description Target of the List-Unsubscribe header. Mail clients POST "List-Unsubscribe=One-Click"; the body is ignored.
// @Tags newsletter
// @Produce json
// @Param token query string true "Signed unsubscribe token"
// @Success 200 {object} helpers.APIResponse "data.status: unsubscribed"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /api/newsletter/unsubscribe/one-click [post]
func (c *NewsletterController) OneClickUnsubscribe(w http.ResponseWriter, r *http.Request) {
	c.unsubscribeByToken(w, r)
}

func (c *NewsletterController) unsubscribeByToken(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "token is required")
		return
	}
	if err := c.Service.UnsubscribeByToken(r.Context(), token); err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, SubscriptionResponse{Status: domain.SubscriberStatusUnsubscribed})
}
