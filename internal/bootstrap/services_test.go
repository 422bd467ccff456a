package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/automaton-hq/automaton/config"
)

func TestErrorChannelSizing(t *testing.T) {
	tests := []struct {
		name         string
		enabled      map[config.ServiceMode]bool
		wantCapacity int
		wantBuffer   int
	}{
		{
			name:         "no services enabled",
			enabled:      map[config.ServiceMode]bool{},
			wantCapacity: 0,
			wantBuffer:   1,
		},
		{
			name:         "poller only",
			enabled:      map[config.ServiceMode]bool{config.ServiceModePoller: true},
			wantCapacity: 1,
			wantBuffer:   2,
		},
		{
			name:         "reaper only",
			enabled:      map[config.ServiceMode]bool{config.ServiceModeReaper: true},
			wantCapacity: 1,
			wantBuffer:   2,
		},
		{
			name: "poller and reaper",
			enabled: map[config.ServiceMode]bool{
				config.ServiceModePoller: true,
				config.ServiceModeReaper: true,
			},
			wantCapacity: 2,
			wantBuffer:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCapacity, errorChannelCapacity(tt.enabled))
			// The buffer leaves one extra slot for the shutdown error.
			assert.Equal(t, tt.wantBuffer, errorChannelBufferSize(tt.enabled))
		})
	}
}
