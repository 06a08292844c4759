package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRideStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   RideStatus
		terminal bool
	}{
		{RideStatusRequested, false},
		{RideStatusOffering, false},
		{RideStatusAccepted, false},
		{RideStatusInProgress, false},
		{RideStatusCompleted, true},
		{RideStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestRideHasDeclined(t *testing.T) {
	ride := &Ride{DeclinedDriverIDs: []int64{4, 9}}

	assert.True(t, ride.HasDeclined(4))
	assert.True(t, ride.HasDeclined(9))
	assert.False(t, ride.HasDeclined(5))

	empty := &Ride{}
	assert.False(t, empty.HasDeclined(4))
}
