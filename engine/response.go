package engine

import (
	"time"

	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/provider"
)

// errorSource tags the error block of every response built here.
const errorSource = "sharenode"

// shareResponse snapshots the invitation state. Terminal invitation
// statuses close the observation window at now; anything else leaves it
// open with start == end.
func shareResponse(p ShareParams, inv *provider.Invitation) *models.ShareResponse {
	end := inv.SentAt
	var duration int64
	if inv.Status.Terminal() {
		end = time.Now().UTC()
		duration = end.Sub(inv.SentAt).Milliseconds()
	}
	return &models.ShareResponse{
		InvitationID:   inv.InvitationID,
		InvitationName: inv.Name,
		ProviderNodeID: p.ProviderNodeID,
		ConsumerNodeID: p.ConsumerNodeID,
		Dataset:        p.Dataset,
		Status: models.StatusDetails{
			Status:   inv.Status,
			Start:    inv.SentAt,
			End:      end,
			Duration: duration,
		},
		Error: models.Error{
			Code:   models.CodeNoError,
			Source: errorSource,
			Date:   time.Now().UTC(),
		},
	}
}

// consumeResponse snapshots a synchronization run. A message on the run
// is surfaced as SYNCHRONIZATION_ERROR alongside whatever status the run
// itself reported; the status is not forced to Failed.
func consumeResponse(p ConsumeParams, run *provider.Synchronization) *models.ConsumeResponse {
	errCode := models.CodeNoError
	if run.Message != "" {
		errCode = models.CodeSynchronizationError
	}
	return &models.ConsumeResponse{
		InvitationID:   p.InvitationID,
		ProviderNodeID: p.ProviderNodeID,
		ConsumerNodeID: p.ConsumerNodeID,
		Dataset:        p.Dataset,
		Status: models.StatusDetails{
			Status:   run.Status,
			Start:    run.Start,
			End:      run.End,
			Duration: run.DurationMS,
		},
		Error: models.Error{
			Code:    errCode,
			Message: run.Message,
			Source:  errorSource,
			Date:    time.Now().UTC(),
		},
	}
}
