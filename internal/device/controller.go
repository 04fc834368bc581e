// File: internal/device/controller.go

// Package device is the touch-gesture channel to the physical phone. It speaks
// plain adb: connect to a serial, then synthesize input events with
// "adb shell input". The device is blind from our side; nothing here reads the
// screen back, it only injects.
package device

import (
	"context"
	"fmt"
	"math/rand"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Android key event codes used by the controller.
const (
	keycodeBack  = 4
	keycodeEnter = 66
)

// Runner executes an external command and returns its combined output. It
// exists so tests can intercept adb invocations.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// execRunner runs commands through os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Config identifies one device connection.
type Config struct {
	// ADBPath is the adb binary; "adb" relies on PATH.
	ADBPath string
	// Serial is the adb target, typically "host:port" for networked devices.
	Serial string
	// CommandTimeout bounds every adb invocation.
	CommandTimeout time.Duration

	// Tap randomization so repeated taps do not land on the same pixel.
	TapJitterX  int
	TapJitterY  int
	TapHoldMin  time.Duration
	TapHoldMax  time.Duration

	// Rng overrides the random source; nil seeds from the clock.
	Rng *rand.Rand

	// Runner overrides command execution; nil uses os/exec.
	Runner Runner
}

// Controller drives a single adb-connected device.
type Controller struct {
	cfg    Config
	runner Runner
	rng    *rand.Rand
	log    *zap.Logger
}

// New creates a controller for one device.
func New(cfg Config, logger *zap.Logger) (*Controller, error) {
	if cfg.Serial == "" {
		return nil, fmt.Errorf("device: serial is required")
	}
	if cfg.ADBPath == "" {
		cfg.ADBPath = "adb"
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if cfg.TapJitterX == 0 {
		cfg.TapJitterX = 15
	}
	if cfg.TapJitterY == 0 {
		cfg.TapJitterY = 10
	}
	if cfg.TapHoldMin <= 0 {
		cfg.TapHoldMin = 50 * time.Millisecond
	}
	if cfg.TapHoldMax < cfg.TapHoldMin {
		cfg.TapHoldMax = 150 * time.Millisecond
	}

	runner := cfg.Runner
	if runner == nil {
		runner = execRunner{}
	}
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Controller{
		cfg:    cfg,
		runner: runner,
		rng:    rng,
		log:    logger.Named("device").With(zap.String("serial", cfg.Serial)),
	}, nil
}

// adb runs one adb command against this device's serial.
func (c *Controller) adb(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CommandTimeout)
	defer cancel()

	full := append([]string{"-s", c.cfg.Serial}, args...)
	out, err := c.runner.Run(ctx, c.cfg.ADBPath, full...)
	if err != nil {
		return out, fmt.Errorf("device: adb %s failed: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// Shell runs an adb shell command on the device.
func (c *Controller) Shell(ctx context.Context, args ...string) (string, error) {
	return c.adb(ctx, append([]string{"shell"}, args...)...)
}

// Connect establishes the adb connection for networked devices.
func (c *Controller) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CommandTimeout)
	defer cancel()

	out, err := c.runner.Run(ctx, c.cfg.ADBPath, "connect", c.cfg.Serial)
	if err != nil {
		return fmt.Errorf("device: adb connect failed: %w", err)
	}
	if strings.Contains(out, "failed") || strings.Contains(out, "cannot") {
		return fmt.Errorf("device: adb connect rejected: %s", out)
	}

	c.log.Info("Device connected", zap.String("response", out))
	return nil
}

// Swipe injects one swipe gesture. Implements actuator.TouchInjector.
func (c *Controller) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	c.log.Debug("Swipe",
		zap.Int("x1", x1), zap.Int("y1", y1),
		zap.Int("x2", x2), zap.Int("y2", y2),
		zap.Duration("duration", duration))

	_, err := c.Shell(ctx, "input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1),
		strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.FormatInt(duration.Milliseconds(), 10))
	return err
}

// Tap touches the screen near (x, y). The coordinate is jittered and the
// finger held briefly so consecutive taps do not look machine-stamped; a tap
// is injected as a zero-travel swipe to get the hold duration.
func (c *Controller) Tap(ctx context.Context, x, y int) error {
	jx := x + c.rng.Intn(2*c.cfg.TapJitterX+1) - c.cfg.TapJitterX
	jy := y + c.rng.Intn(2*c.cfg.TapJitterY+1) - c.cfg.TapJitterY

	hold := c.cfg.TapHoldMin
	if spread := c.cfg.TapHoldMax - c.cfg.TapHoldMin; spread > 0 {
		hold += time.Duration(c.rng.Int63n(int64(spread)))
	}

	c.log.Debug("Tap", zap.Int("x", jx), zap.Int("y", jy), zap.Duration("hold", hold))
	_, err := c.Shell(ctx, "input", "swipe",
		strconv.Itoa(jx), strconv.Itoa(jy),
		strconv.Itoa(jx), strconv.Itoa(jy),
		strconv.FormatInt(hold.Milliseconds(), 10))
	return err
}

// PressBack injects the hardware back key.
func (c *Controller) PressBack(ctx context.Context) error {
	_, err := c.Shell(ctx, "input", "keyevent", strconv.Itoa(keycodeBack))
	return err
}

// PressEnter injects the enter key.
func (c *Controller) PressEnter(ctx context.Context) error {
	_, err := c.Shell(ctx, "input", "keyevent", strconv.Itoa(keycodeEnter))
	return err
}

// InputText types ASCII text through the shell input service. Spaces must be
// encoded as %s for the input command; ampersands would be interpreted by the
// device shell.
func (c *Controller) InputText(ctx context.Context, text string) error {
	escaped := strings.ReplaceAll(text, " ", "%s")
	escaped = strings.ReplaceAll(escaped, "&", `\&`)
	_, err := c.Shell(ctx, "input", "text", escaped)
	return err
}
