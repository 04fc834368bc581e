// File: internal/pipeline/planner_test.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/kimjiwoons/blindscroll/internal/config"
	"github.com/kimjiwoons/blindscroll/internal/geometry"
	"github.com/kimjiwoons/blindscroll/internal/plancache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fakeSession replays canned measurements keyed by the currently loaded URL.
// Expression dispatch mirrors the two resolver scripts: the domain script
// carries a targetRef binding, the text script does not.
type fakeSession struct {
	navigated []string
	current   string

	expandByURL map[string]geometry.Measurement
	domainByURL map[string]geometry.Measurement

	navErr  error
	evalErr error

	emulated []geometry.Viewport
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	if f.navErr != nil {
		return f.navErr
	}
	f.navigated = append(f.navigated, url)
	f.current = url
	return nil
}

func (f *fakeSession) EmulateViewport(v geometry.Viewport) error {
	f.emulated = append(f.emulated, v)
	return nil
}

func (f *fakeSession) Evaluate(_ context.Context, expression string, out any) error {
	if f.evalErr != nil {
		return f.evalErr
	}

	var m geometry.Measurement
	if strings.Contains(expression, "targetRef") {
		m = f.domainByURL[f.current]
	} else {
		m = f.expandByURL[f.current]
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// testConfig sizes the device so the effective page height is exactly 800px.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Device.ScreenWidth = 720
	cfg.Device.ScreenHeight = 906
	require.Equal(t, 800, geometry.NewViewport(720, 906, geometry.ChromeOffsets{
		StatusBar:  cfg.Device.StatusBarHeight,
		AddressBar: cfg.Device.AddressBarHeight,
		NavBar:     cfg.Device.NavBarHeight,
	}).EffectiveHeight())
	return cfg
}

func newTestCache(t *testing.T, cfg *config.Config) *plancache.Cache {
	t.Helper()
	c, err := plancache.New(filepath.Join(t.TempDir(), "plans.json"), cfg.Cache.RefreshInterval, zap.NewNop())
	require.NoError(t, err)
	return c
}

func aggregateURL(cfg *config.Config, query string) string {
	return fmt.Sprintf(cfg.Search.AggregateURL, url.QueryEscape(query))
}

func pagedURL(cfg *config.Config, query string, page int) string {
	start := 1 + (page-1)*cfg.Search.ResultsPerPage
	return fmt.Sprintf(cfg.Search.PagedURL, url.QueryEscape(query), start)
}

func TestComputePlanRejectsInvalidViewport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Device.ScreenHeight = 90 // chrome offsets consume the whole screen
	p := NewPlanner(&fakeSession{}, newTestCache(t, cfg), cfg, zap.NewNop())

	plan, err := p.ComputePlan(context.Background(), "ski resort", "resort.example")
	require.Error(t, err)
	assert.False(t, plan.Calculated)
}

func TestComputePlanFindsTargetOnLaterPage(t *testing.T) {
	cfg := testConfig(t)
	query, target := "ski resort", "resort.example"

	session := &fakeSession{
		expandByURL: map[string]geometry.Measurement{
			aggregateURL(cfg, query): {Found: true, AbsoluteY: 1593},
		},
		domainByURL: map[string]geometry.Measurement{
			pagedURL(cfg, query, 4): {Found: true, AbsoluteY: 1593, Href: "https://resort.example/"},
		},
	}
	p := NewPlanner(session, newTestCache(t, cfg), cfg, zap.NewNop())

	plan, err := p.ComputePlan(context.Background(), query, target)
	require.NoError(t, err)

	assert.True(t, plan.Calculated)
	// 1593 at 40% of an 800px viewport with 400px gestures at 0.85
	// calibration: floor(1273/340) plus the minimum margin of one.
	assert.Equal(t, 4, plan.MoreScrollCount)
	// Final approach is margin free: floor((1593 - 280) / 400).
	assert.Equal(t, 3, plan.DomainScrollCount)
	assert.Equal(t, 4, plan.DomainPage)
	assert.Equal(t, 800.0, plan.ViewportHeight)
	assert.Equal(t, 400.0, plan.GestureDistance)

	// Aggregate page first, then result pages 1 through 4, stopping at the hit.
	require.Len(t, session.navigated, 5)
	assert.Equal(t, aggregateURL(cfg, query), session.navigated[0])
	for page := 1; page <= 4; page++ {
		assert.Equal(t, pagedURL(cfg, query, page), session.navigated[page])
	}

	require.Len(t, session.emulated, 1)
	assert.Equal(t, 800, session.emulated[0].EffectiveHeight())
}

func TestComputePlanExpandMissUsesFallbackCount(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{}
	p := NewPlanner(session, newTestCache(t, cfg), cfg, zap.NewNop())

	plan, err := p.ComputePlan(context.Background(), "ski resort", "resort.example")
	require.NoError(t, err)

	assert.Equal(t, cfg.Search.DefaultExpandScrolls, plan.MoreScrollCount)
	assert.Zero(t, plan.MoreElementY)
	assert.True(t, plan.Calculated)
}

func TestComputePlanExhaustedPagesIsValidNotFound(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{}
	p := NewPlanner(session, newTestCache(t, cfg), cfg, zap.NewNop())

	plan, err := p.ComputePlan(context.Background(), "ski resort", "resort.example")
	require.NoError(t, err)

	assert.True(t, plan.Calculated)
	assert.Equal(t, plancache.DomainNotFound, plan.DomainScrollCount)
	assert.Zero(t, plan.DomainPage)
	assert.False(t, plan.DomainFound())

	// Aggregate page plus every result page up to the bound.
	assert.Len(t, session.navigated, 1+cfg.Search.MaxPages)
}

func TestComputePlanEvaluateFailureDegradesGracefully(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{evalErr: errors.New("target crashed")}
	p := NewPlanner(session, newTestCache(t, cfg), cfg, zap.NewNop())

	plan, err := p.ComputePlan(context.Background(), "ski resort", "resort.example")
	require.NoError(t, err)

	assert.True(t, plan.Calculated)
	assert.Equal(t, cfg.Search.DefaultExpandScrolls, plan.MoreScrollCount)
	assert.Equal(t, plancache.DomainNotFound, plan.DomainScrollCount)
}

func TestPlanReusesCachedResult(t *testing.T) {
	cfg := testConfig(t)
	query, target := "ski resort", "resort.example"

	session := &fakeSession{
		domainByURL: map[string]geometry.Measurement{
			pagedURL(cfg, query, 1): {Found: true, AbsoluteY: 1593},
		},
	}
	cache := newTestCache(t, cfg)
	p := NewPlanner(session, cache, cfg, zap.NewNop())

	first, err := p.Plan(context.Background(), query, target)
	require.NoError(t, err)
	navsAfterCompute := len(session.navigated)

	second, err := p.Plan(context.Background(), query, target)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, session.navigated, navsAfterCompute, "cache hit must not touch the browser")
	assert.Equal(t, 2, cache.UseCount(query, target))
}

func TestPlanDoesNotCacheFailedComputation(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{navErr: errors.New("net::ERR_CONNECTION_RESET")}
	cache := newTestCache(t, cfg)
	p := NewPlanner(session, cache, cfg, zap.NewNop())

	_, err := p.Plan(context.Background(), "ski resort", "resort.example")
	require.Error(t, err)
	assert.Zero(t, cache.UseCount("ski resort", "resort.example"))
}
