package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/require"
)

func TestChromeTimeoutDefaults(t *testing.T) {
	t.Parallel()

	c := &Chrome{}
	require.Equal(t, defaultNavigationTimeout, c.navTimeout())
	require.Equal(t, defaultActionTimeout, c.actionTimeout())

	c.cfg = Config{NavigationTimeout: time.Second, ActionTimeout: 2 * time.Second}
	require.Equal(t, time.Second, c.navTimeout())
	require.Equal(t, 2*time.Second, c.actionTimeout())
}

func TestAllocatorOptionsExtendDefaults(t *testing.T) {
	t.Parallel()

	base := len(allocatorOptions(Config{}))
	require.Greater(t, base, len(chromedp.DefaultExecAllocatorOptions))

	withProfile := allocatorOptions(Config{Headless: true, UserDataDir: "/tmp/profile", ExecPath: "/usr/bin/chromium"})
	require.Equal(t, base+4, len(withProfile))
}

func TestMapWaitErr(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, mapWaitErr(context.Background(), context.DeadlineExceeded), ErrTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := mapWaitErr(ctx, context.Canceled)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrTimeout)

	other := errors.New("node detached")
	require.ErrorIs(t, mapWaitErr(context.Background(), other), other)
}

func TestForwardCancelPropagatesParent(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()

	cancelParent()
	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("expected child context to be canceled")
	}
}

func TestForwardCancelStopDetaches(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	stop()
	cancelParent()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, child.Err())
}

func TestWaitUntilRetriesThroughEvaluationErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	err := waitUntil(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
		calls++
		switch calls {
		case 1:
			return false, nil
		case 2:
			return false, errors.New("Execution context was destroyed")
		default:
			return true, nil
		}
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWaitUntilTimesOutOnUnchangedPage(t *testing.T) {
	t.Parallel()

	stale := errors.New("still the old page")
	err := waitUntil(context.Background(), 20*time.Millisecond, time.Millisecond, func(context.Context) (bool, error) {
		return false, stale
	})
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, stale)
}

func TestWaitUntilHonorsCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitUntil(ctx, time.Hour, time.Hour, func(context.Context) (bool, error) { return false, nil })
	require.ErrorIs(t, err, context.Canceled)
}
