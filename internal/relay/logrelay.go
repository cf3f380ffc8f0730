package relay

import (
	"context"

	"go.uber.org/zap"
)

// LogRelay writes notifications to the logger instead of an external channel.
// It is the default backend when no bot token is configured.
type LogRelay struct {
	logger *zap.Logger
}

// NewLogRelay constructs the relay.
func NewLogRelay(logger *zap.Logger) *LogRelay {
	return &LogRelay{logger: logger}
}

// Send logs the payload.
func (r *LogRelay) Send(ctx context.Context, channelAddress, text string) error {
	r.logger.Info("notification",
		zap.String("channel_address", channelAddress),
		zap.String("text", text))
	return nil
}
