// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kimjiwoons/blindscroll/internal/actuator"
	"github.com/kimjiwoons/blindscroll/internal/browser"
	"github.com/kimjiwoons/blindscroll/internal/device"
	"github.com/kimjiwoons/blindscroll/internal/observability"
	"github.com/kimjiwoons/blindscroll/internal/pipeline"
	"github.com/kimjiwoons/blindscroll/internal/plancache"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var planOnly bool

	runCmd := &cobra.Command{
		Use:   "run <query> <target-domain>",
		Short: "Plans and executes the scroll sequence on the connected device",
		Long: `Run resolves the scroll plan for the query/target pair (from cache or by
measuring), connects to the device over adb, and injects the planned gesture
sequence: compensated scrolls to the expand affordance, then compensated
scrolls to the target domain link on its result page.`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("device.serial", cmd.Flags().Lookup("serial"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			query, target := args[0], args[1]

			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}
			if cfg.Device.Serial == "" {
				return fmt.Errorf("device serial is required (--serial or BLINDSCROLL_DEVICE_SERIAL)")
			}

			cache, err := openPlanCache(logger)
			if err != nil {
				return err
			}

			session, err := browser.NewSession(ctx, cfg.Browser, logger)
			if err != nil {
				return err
			}

			planner := pipeline.NewPlanner(session, cache, cfg, logger)
			plan, err := planner.Plan(ctx, query, target)
			// The measurement browser is not needed during actuation.
			session.Close()
			if err != nil {
				return err
			}

			logger.Info("Scroll plan resolved",
				zap.Int("expandGestures", plan.MoreScrollCount),
				zap.Int("domainGestures", plan.DomainScrollCount),
				zap.Int("domainPage", plan.DomainPage))

			if planOnly {
				return nil
			}

			return executePlan(ctx, plan, logger)
		},
	}

	runCmd.Flags().String("serial", "", "adb device serial, e.g. 192.168.0.10:5555 (overrides config/env)")
	runCmd.Flags().BoolVar(&planOnly, "plan-only", false, "Resolve the plan but skip device actuation.")
	return runCmd
}

// executePlan drives the device through the planned gesture sequence.
func executePlan(ctx context.Context, plan plancache.Plan, logger *zap.Logger) error {
	controller, err := device.New(device.Config{
		ADBPath:        cfg.Device.ADBPath,
		Serial:         cfg.Device.Serial,
		CommandTimeout: cfg.Device.CommandTimeout,
	}, logger)
	if err != nil {
		return err
	}
	if err := controller.Connect(ctx); err != nil {
		return err
	}

	act, err := actuator.New(controller, actuator.Config{
		NominalDistance:         cfg.Scroll.Distance,
		RandomWindow:            cfg.Scroll.RandomWindow,
		ScrollX:                 cfg.Scroll.ScrollX,
		ScrollStartY:            cfg.Scroll.ScrollStartY,
		ScrollEndY:              cfg.Scroll.ScrollEndY,
		XJitter:                 cfg.Scroll.XJitter,
		DurationMin:             cfg.Scroll.DurationMin,
		DurationMax:             cfg.Scroll.DurationMax,
		ReadingPauseEnabled:     cfg.Scroll.ReadingPause.Enabled,
		ReadingPauseProbability: cfg.Scroll.ReadingPause.Probability,
		ReadingPauseMin:         cfg.Scroll.ReadingPause.MinTime,
		ReadingPauseMax:         cfg.Scroll.ReadingPause.MaxTime,
	}, logger)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	logger.Info("Scrolling to expand affordance", zap.Int("gestures", plan.MoreScrollCount))
	if err := scrollSequence(ctx, act, plan.MoreScrollCount, rng); err != nil {
		return err
	}

	if !plan.DomainFound() {
		logger.Warn("Plan does not locate the target domain; stopping after expand phase")
		return nil
	}

	logger.Info("Scrolling to target link",
		zap.Int("gestures", plan.DomainScrollCount),
		zap.Int("page", plan.DomainPage))
	return scrollSequence(ctx, act, plan.DomainScrollCount, rng)
}

// scrollSequence issues count compensated gestures with randomized settle
// delays between them. The debt is reset first so error from an earlier
// sequence never bleeds into this one.
func scrollSequence(ctx context.Context, act *actuator.Actuator, count int, rng *rand.Rand) error {
	act.ResetDebt()
	for i := 0; i < count; i++ {
		if _, err := act.ScrollDown(ctx, actuator.ModeCompensated); err != nil {
			return err
		}
		if err := settleDelay(ctx, rng); err != nil {
			return err
		}
	}
	return nil
}

// settleDelay waits for the page to settle after a gesture.
func settleDelay(ctx context.Context, rng *rand.Rand) error {
	delay := cfg.Scroll.AfterScrollDelayMin
	if spread := cfg.Scroll.AfterScrollDelayMax - cfg.Scroll.AfterScrollDelayMin; spread > 0 {
		delay += time.Duration(rng.Int63n(int64(spread)))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
