package relay

import (
	"context"

	"go.uber.org/zap"
)

// DryRunSender logs outbound messages instead of delivering them. Useful
// when replaying archives or testing against a production channel.
type DryRunSender struct {
	Logger *zap.Logger
}

func (d *DryRunSender) SendText(_ context.Context, channel, message string) error {
	if d.Logger != nil {
		d.Logger.Info("dryrun_send", zap.String("channel", channel), zap.Int("len", len(message)))
	}
	return nil
}
