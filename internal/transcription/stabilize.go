package transcription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// waitForStableText polls read every cfg.Interval until the returned text has
// been identical for cfg.Rounds consecutive observations and is at least
// cfg.MinLength long. The whole wait is bounded by cfg.Timeout.
func waitForStableText(ctx context.Context, read func(context.Context) (string, error), cfg config.StabilizeConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var last string
	stable := 0
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, fmt.Errorf("%w: response did not settle (last length %d)", types.ErrTimeout, len(last))
			}
			return last, ctx.Err()
		case <-ticker.C:
		}

		text, err := read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return last, fmt.Errorf("%w: read response: %v", types.ErrRemoteProcessing, err)
		}

		if text != last || len(text) < cfg.MinLength {
			last = text
			stable = 0
			continue
		}
		stable++
		if stable >= cfg.Rounds {
			return text, nil
		}
	}
}
