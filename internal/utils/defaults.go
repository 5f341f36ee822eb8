package utils

import (
	"fmt"
	"os"
	"strconv"
)

// channel buffer defaults by pipeline stage
var channelBufferDefaults = map[string]int{
	"LiveTransfers":      5000,
	"TransferBroadcasts": 1000,
	"SnapshotUpdates":    100,
	"ClientSend":         256,
}

// ChannelBufferSize returns the buffer size for a named pipeline channel.
// CHANNEL_BUFFER_<name> overrides the default.
func ChannelBufferSize(name string, fallback int) int {
	if v := os.Getenv(fmt.Sprintf("CHANNEL_BUFFER_%s", name)); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size > 0 {
			return size
		}
	}
	if size, ok := channelBufferDefaults[name]; ok {
		return size
	}
	if fallback > 0 {
		return fallback
	}
	return 1000
}
