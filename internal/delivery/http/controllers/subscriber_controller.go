package controllers

import (
	"log/slog"
	"net/http"

	h "bawabamail/internal/delivery/http/helpers"
	"bawabamail/internal/domain"
)

type SubscriberController struct {
	Logger  *slog.Logger
	Service domain.SubscriberService
}

func NewSubscriberController(logger *slog.Logger, svc domain.SubscriberService) *SubscriberController {
	return &SubscriberController{
		Logger:  logger,
		Service: svc,
	}
}

// List godoc
// @Summary List subscribers
// @Tags subscribers
// @Produce json
// @Security BearerAuth
// @Param status query string false "active or unsubscribed"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data contains items and pagination"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /subscribers [get]
func (c *SubscriberController) List(w http.ResponseWriter, r *http.Request) {
	q := h.ParseListQuery(r)
	subs, total, err := c.Service.List(r.Context(), domain.SubscriberStatus(q.Status), q.Params)
	if err != nil {
		writeServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, h.NewListResponse(subs, q.Params, total))
}
