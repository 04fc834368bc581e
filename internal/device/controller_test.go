// File: internal/device/controller_test.go
package device

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRunner records commands and replays canned responses.
type fakeRunner struct {
	calls  [][]string
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.output, f.err
}

func newTestController(t *testing.T, runner *fakeRunner) *Controller {
	t.Helper()
	c, err := New(Config{
		Serial: "198.51.100.7:5555",
		Runner: runner,
		Rng:    rand.New(rand.NewSource(42)),
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewRequiresSerial(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestSwipeCommandShape(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestController(t, runner)

	err := c.Swipe(context.Background(), 360, 1100, 360, 700, 450*time.Millisecond)
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.Equal(t,
		[]string{"adb", "-s", "198.51.100.7:5555", "shell", "input", "swipe", "360", "1100", "360", "700", "450"},
		runner.calls[0])
}

func TestTapJittersWithinBounds(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestController(t, runner)

	for i := 0; i < 25; i++ {
		require.NoError(t, c.Tap(context.Background(), 373, 344))
	}

	for _, call := range runner.calls {
		// adb -s serial shell input swipe x y x y hold
		require.Len(t, call, 11)
		tapX := atoi(t, call[6])
		tapY := atoi(t, call[7])
		assert.InDelta(t, 373, tapX, 15)
		assert.InDelta(t, 344, tapY, 10)
		assert.Equal(t, call[6], call[8], "tap must not travel")
		assert.Equal(t, call[7], call[9])

		hold := atoi(t, call[10])
		assert.GreaterOrEqual(t, hold, 50)
		assert.Less(t, hold, 150)
	}
}

func TestConnectRejectsFailureBanner(t *testing.T) {
	runner := &fakeRunner{output: "failed to connect to 198.51.100.7:5555"}
	c := newTestController(t, runner)

	err := c.Connect(context.Background())
	assert.Error(t, err)
}

func TestConnectAcceptsSuccess(t *testing.T) {
	runner := &fakeRunner{output: "connected to 198.51.100.7:5555"}
	c := newTestController(t, runner)

	assert.NoError(t, c.Connect(context.Background()))
}

func TestInputTextEscaping(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestController(t, runner)

	require.NoError(t, c.InputText(context.Background(), "ski lessons & more"))

	last := runner.calls[len(runner.calls)-1]
	assert.Equal(t, `ski%slessons%s\&%smore`, last[len(last)-1])
}

func TestKeyEvents(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestController(t, runner)

	require.NoError(t, c.PressBack(context.Background()))
	require.NoError(t, c.PressEnter(context.Background()))

	assert.Equal(t, "4", runner.calls[0][len(runner.calls[0])-1])
	assert.Equal(t, "66", runner.calls[1][len(runner.calls[1])-1])
}

func TestShellErrorIsWrapped(t *testing.T) {
	runner := &fakeRunner{err: errors.New("device offline")}
	c := newTestController(t, runner)

	_, err := c.Shell(context.Background(), "input", "keyevent", "4")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "device offline"))
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, r := range s {
		require.True(t, r >= '0' && r <= '9', "expected number, got %q", s)
		n = n*10 + int(r-'0')
	}
	return n
}
