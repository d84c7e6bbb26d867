package services

import "bawabamail/internal/domain"

// ShouldDispatch reports whether a campaign write must hand the campaign off for dispatch:
// a create that lands in send_now, or an update that moves into send_now from any other status.
// Updates that keep a campaign in send_now do not fire again.
func ShouldDispatch(op domain.WriteOperation, previous, next *domain.Campaign) bool {
	if next == nil || next.Status != domain.CampaignStatusSendNow {
		return false
	}
	switch op {
	case domain.WriteOperationCreate:
		return true
	case domain.WriteOperationUpdate:
		return previous == nil || previous.Status != domain.CampaignStatusSendNow
	}
	return false
}
