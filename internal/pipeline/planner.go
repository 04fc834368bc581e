// File: internal/pipeline/planner.go

// Package pipeline composes measurement, prediction, and caching into scroll
// plans. A planner owns one measurement session and one plan store; it never
// touches the device. Plans flow out of here and into the actuator.
package pipeline

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kimjiwoons/blindscroll/internal/config"
	"github.com/kimjiwoons/blindscroll/internal/geometry"
	"github.com/kimjiwoons/blindscroll/internal/plancache"
	"github.com/kimjiwoons/blindscroll/internal/predictor"
	"go.uber.org/zap"
)

// Session is the measurement surface the planner drives: page loads, viewport
// emulation, and read-only script evaluation. browser.Session satisfies it.
type Session interface {
	Navigate(ctx context.Context, url string) error
	EmulateViewport(v geometry.Viewport) error
	Evaluate(ctx context.Context, expression string, out any) error
}

// Planner computes scroll plans for (query, target) pairs and fronts them with
// the persistent plan cache.
type Planner struct {
	session  Session
	resolver *geometry.Resolver
	cache    *plancache.Cache
	cfg      *config.Config
	log      *zap.Logger
}

// NewPlanner wires a planner over a measurement session and a plan store.
func NewPlanner(session Session, cache *plancache.Cache, cfg *config.Config, logger *zap.Logger) *Planner {
	return &Planner{
		session:  session,
		resolver: geometry.NewResolver(session, logger),
		cache:    cache,
		cfg:      cfg,
		log:      logger.Named("pipeline"),
	}
}

// Plan returns the scroll plan for (query, target), reusing a cached plan when
// one is still fresh. Only completed computations are stored; a plan that
// failed partway must never be replayed from the cache.
func (p *Planner) Plan(ctx context.Context, query, target string) (plancache.Plan, error) {
	if plan, ok := p.cache.Get(query, target); ok {
		if err := p.cache.Increment(query, target); err != nil {
			p.log.Warn("Failed to record plan reuse", zap.Error(err))
		}
		p.log.Info("Reusing cached scroll plan",
			zap.String("query", query),
			zap.String("target", target),
			zap.Int("useCount", p.cache.UseCount(query, target)))
		return plan, nil
	}

	plan, err := p.ComputePlan(ctx, query, target)
	if err != nil {
		return plan, err
	}

	if plan.Calculated {
		if err := p.cache.Set(query, target, plan); err != nil {
			p.log.Warn("Failed to persist scroll plan", zap.Error(err))
		}
	}
	return plan, nil
}

// ComputePlan measures the result pages for (query, target) and derives a
// fresh scroll plan. The returned plan is Calculated even when the target link
// is not found within the page bound; that is a valid negative result. Only an
// invalid viewport or a failed page load leaves the plan uncalculated.
func (p *Planner) ComputePlan(ctx context.Context, query, target string) (plancache.Plan, error) {
	viewport := geometry.NewViewport(
		p.cfg.Device.ScreenWidth,
		p.cfg.Device.ScreenHeight,
		geometry.ChromeOffsets{
			StatusBar:  p.cfg.Device.StatusBarHeight,
			AddressBar: p.cfg.Device.AddressBarHeight,
			NavBar:     p.cfg.Device.NavBarHeight,
		})
	if !viewport.Valid() {
		return plancache.Plan{}, fmt.Errorf(
			"pipeline: device viewport %dx%d leaves no usable page area",
			p.cfg.Device.ScreenWidth, p.cfg.Device.ScreenHeight)
	}
	if err := p.session.EmulateViewport(viewport); err != nil {
		return plancache.Plan{}, err
	}

	effectiveHeight := float64(viewport.EffectiveHeight())
	plan := plancache.Plan{
		ViewportHeight:  effectiveHeight,
		GestureDistance: float64(p.cfg.Scroll.Distance),
	}

	escaped := url.QueryEscape(query)

	// Phase 1: aggregate results page, expand affordance.
	aggregateURL := fmt.Sprintf(p.cfg.Search.AggregateURL, escaped)
	if err := p.session.Navigate(ctx, aggregateURL); err != nil {
		return plan, fmt.Errorf("pipeline: aggregate page load failed: %w", err)
	}

	expand, err := p.resolver.FindElementByText(ctx, p.cfg.Search.ExpandLabel, false)
	switch {
	case err != nil:
		// The measurement channel failed; the fallback count keeps the plan
		// usable because overshooting the affordance is harmless.
		p.log.Warn("Expand affordance measurement failed, using fallback count", zap.Error(err))
		plan.MoreScrollCount = p.cfg.Search.DefaultExpandScrolls
	case !expand.Found:
		p.log.Info("Expand affordance not found, using fallback count",
			zap.String("label", p.cfg.Search.ExpandLabel),
			zap.Int("fallback", p.cfg.Search.DefaultExpandScrolls))
		plan.MoreScrollCount = p.cfg.Search.DefaultExpandScrolls
	default:
		plan.MoreElementY = expand.AbsoluteY
		plan.MoreScrollCount = predictor.MarginPaddedCount(
			expand.AbsoluteY, p.cfg.Scroll.ExpandTargetFraction, effectiveHeight,
			predictor.Params{
				GestureDistance: float64(p.cfg.Scroll.Distance),
				Calibration:     p.cfg.Scroll.Calibration,
				MarginRatio:     p.cfg.Scroll.MarginRatio,
				MarginMin:       p.cfg.Scroll.MarginMin,
				MarginMax:       p.cfg.Scroll.MarginMax,
			})
		p.log.Info("Expand affordance measured",
			zap.Float64("elementY", expand.AbsoluteY),
			zap.Int("gestures", plan.MoreScrollCount))
	}

	// Phase 2: page through the expanded web results for the target link.
	plan.DomainScrollCount = plancache.DomainNotFound
	for page := 1; page <= p.cfg.Search.MaxPages; page++ {
		start := 1 + (page-1)*p.cfg.Search.ResultsPerPage
		pageURL := fmt.Sprintf(p.cfg.Search.PagedURL, escaped, start)
		if err := p.session.Navigate(ctx, pageURL); err != nil {
			return plan, fmt.Errorf("pipeline: results page %d load failed: %w", page, err)
		}

		link, err := p.resolver.FindLinkByDomain(ctx, target)
		if err != nil {
			p.log.Warn("Domain link measurement failed, skipping page",
				zap.Int("page", page), zap.Error(err))
			continue
		}
		if !link.Found {
			continue
		}

		plan.DomainElementY = link.AbsoluteY
		plan.DomainPage = page
		plan.DomainScrollCount = predictor.MarginFreeCount(
			link.AbsoluteY, p.cfg.Scroll.DomainTargetFraction,
			effectiveHeight, float64(p.cfg.Scroll.Distance))
		p.log.Info("Target link measured",
			zap.String("target", target),
			zap.Int("page", page),
			zap.Float64("elementY", link.AbsoluteY),
			zap.Int("gestures", plan.DomainScrollCount))
		break
	}

	if plan.DomainScrollCount == plancache.DomainNotFound {
		p.log.Info("Target link not found within page bound",
			zap.String("target", target),
			zap.Int("maxPages", p.cfg.Search.MaxPages))
	}

	plan.Calculated = true
	return plan, nil
}
