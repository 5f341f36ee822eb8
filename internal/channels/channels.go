package channels

import (
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
)

// Channels holds the communication channels of the live pipeline
type Channels struct {
	// Ingest → live collector
	LiveTransfers chan models.NormalizedTransfer
	// Live collector → broadcaster (one-by-one)
	TransferBroadcasts chan models.TransferRow
	// Scheduler → broadcaster
	SnapshotUpdates chan interface{}
}

// NewChannels creates all channels with their configured buffer sizes
func NewChannels() *Channels {
	return &Channels{
		LiveTransfers:      make(chan models.NormalizedTransfer, utils.ChannelBufferSize("LiveTransfers", 5000)),
		TransferBroadcasts: make(chan models.TransferRow, utils.ChannelBufferSize("TransferBroadcasts", 1000)),
		SnapshotUpdates:    make(chan interface{}, utils.ChannelBufferSize("SnapshotUpdates", 100)),
	}
}
