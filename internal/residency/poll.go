package residency

import (
	"context"
	"time"
)

// Poll refreshes on a fixed interval until ctx is done. Intervals below
// MinPollInterval are raised to it; zero selects DefaultPollInterval.
func (t *Tracker) Poll(ctx context.Context, interval time.Duration) error {
	switch {
	case interval == 0:
		interval = DefaultPollInterval
	case interval < MinPollInterval:
		interval = MinPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	t.log.Debug().Dur("interval", interval).Msg("poller started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Refresh()
		}
	}
}
