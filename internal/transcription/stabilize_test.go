package transcription

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

func scripted(outputs ...string) (func(context.Context) (string, error), *int) {
	calls := 0
	return func(context.Context) (string, error) {
		i := calls
		calls++
		if i >= len(outputs) {
			return outputs[len(outputs)-1], nil
		}
		return outputs[i], nil
	}, &calls
}

func fastStabilize() config.StabilizeConfig {
	return config.StabilizeConfig{Interval: time.Millisecond, Rounds: 3, MinLength: 5, Timeout: time.Second}
}

func TestWaitForStableText_SettlesAfterRounds(t *testing.T) {
	read, calls := scripted("00:0", "00:01 hello", "00:01 hello world", "00:01 hello world")

	text, err := waitForStableText(context.Background(), read, fastStabilize())
	require.NoError(t, err)
	assert.Equal(t, "00:01 hello world", text)
	// third distinct value at call 3, then three identical observations
	assert.Equal(t, 6, *calls)
}

func TestWaitForStableText_ShortTextNeverSettles(t *testing.T) {
	read, _ := scripted("ok")
	cfg := fastStabilize()
	cfg.Timeout = 30 * time.Millisecond

	_, err := waitForStableText(context.Background(), read, cfg)
	require.ErrorIs(t, err, types.ErrTimeout)
}

func TestWaitForStableText_GrowingTextTimesOut(t *testing.T) {
	var sb strings.Builder
	read := func(context.Context) (string, error) {
		sb.WriteString("more words ")
		return sb.String(), nil
	}
	cfg := fastStabilize()
	cfg.Timeout = 30 * time.Millisecond

	last, err := waitForStableText(context.Background(), read, cfg)
	require.ErrorIs(t, err, types.ErrTimeout)
	assert.NotEmpty(t, last)
}

func TestWaitForStableText_ReadError(t *testing.T) {
	read := func(context.Context) (string, error) { return "", errors.New("target closed") }

	_, err := waitForStableText(context.Background(), read, fastStabilize())
	require.ErrorIs(t, err, types.ErrRemoteProcessing)
}

func TestWaitForStableText_ParentCancel(t *testing.T) {
	read, _ := scripted("x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := waitForStableText(ctx, read, fastStabilize())
	assert.ErrorIs(t, err, context.Canceled)
}
