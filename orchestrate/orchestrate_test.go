package orchestrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nodemesh/datashare/models"
)

func TestExpandTemplate(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 30, 5, 0, time.UTC)
	req := models.ConsumeRequest{
		ProviderNodeID: "node-a",
		ConsumerNodeID: "node-b",
		InvitationID:   "inv-1",
	}

	cases := []struct {
		format string
		want   string
	}{
		{"consume/{node_id}/dataset-{date}", "consume/node-a/dataset-2026-08-28"},
		{"{time}", "2026-08-28-14-30-05"},
		{"{invitation_id}.csv", "inv-1.csv"},
		{"static/path", "static/path"},
		{"{node_id}-{node_id}", "node-a-node-a"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, expandTemplate(tc.format, req, now), "format %q", tc.format)
	}
}
