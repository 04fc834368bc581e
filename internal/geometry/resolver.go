// File: internal/geometry/resolver.go

// Package geometry locates elements on the measurement browser's rendering of
// a page and reports where they sit in document space. The measurement session
// is a surrogate: it emulates the device viewport but is never the device, so
// everything here is strictly read-only script evaluation. Scroll, touch, and
// navigation side effects belong to other packages.
package geometry

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Evaluator runs a JavaScript expression in the measurement session's page
// context and unmarshals the structured result into out. One measurement is
// one round trip.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, out any) error
}

// Measurement is the position report for a located element. AbsoluteY is the
// offset from the document top; ScreenY is the offset from the current scroll
// position.
type Measurement struct {
	Found     bool    `json:"found"`
	AbsoluteY float64 `json:"absoluteY"`
	ScreenY   float64 `json:"screenY"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Clickable bool    `json:"clickable"`
	Tag       string  `json:"tag"`
	Text      string  `json:"text"`
	Href      string  `json:"href"`
}

// Resolver measures element geometry through an Evaluator.
type Resolver struct {
	session Evaluator
	log     *zap.Logger
}

// NewResolver creates a resolver bound to a measurement session.
func NewResolver(session Evaluator, logger *zap.Logger) *Resolver {
	return &Resolver{
		session: session,
		log:     logger.Named("geometry"),
	}
}

// findByTextJS locates the best element whose rendered text matches the
// needle. Candidates must be visible, narrower than a container (width > 50)
// and shorter than a block (0 < height <= 150); among survivors, native
// interactive tags win: anchor > button > anything clickable > generic.
const findByTextJS = `
(function() {
    const needle = %s;
    const exact = %t;
    const candidates = [];

    for (const el of document.querySelectorAll('*')) {
        const txt = el.textContent ? el.textContent.trim() : '';
        const matched = exact ? txt === needle : (txt.includes(needle) && txt.length < 50);
        if (!matched) continue;

        const style = window.getComputedStyle(el);
        if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') {
            continue;
        }
        if (el.offsetParent === null && style.position !== 'fixed') {
            continue;
        }

        const rect = el.getBoundingClientRect();
        if (rect.width <= 50 || rect.height <= 0 || rect.height > 150) {
            continue;
        }

        const clickable = el.tagName === 'A' || el.tagName === 'BUTTON' ||
            el.onclick !== null || style.cursor === 'pointer';

        let priority = 10;
        if (el.tagName === 'A') priority = 100;
        else if (el.tagName === 'BUTTON') priority = 90;
        else if (clickable) priority = 50;

        candidates.push({
            priority: priority,
            found: true,
            absoluteY: rect.top + window.scrollY,
            screenY: rect.top,
            width: rect.width,
            height: rect.height,
            clickable: clickable,
            tag: el.tagName,
            text: txt.substring(0, 50)
        });
    }

    if (candidates.length === 0) {
        return { found: false };
    }
    candidates.sort((a, b) => b.priority - a.priority);
    return candidates[0];
})()
`

// findLinkByDomainJS locates the result link for a domain reference. The
// href must terminate at the reference: a bare domain therefore matches only
// the site root, and a domain with a path matches exactly that path. Links
// tagged as promotional sub-links are skipped because they overlap the main
// result block's position.
const findLinkByDomainJS = `
(function() {
    const targetRef = %s;
    const baseDomain = %s;

    for (const link of document.querySelectorAll('a[href*="' + baseDomain + '"]')) {
        const href = link.getAttribute('href');
        if (!href) continue;

        if (link.getAttribute('data-heatmap-target') === '.sublink') {
            continue;
        }

        if (!(href.endsWith(targetRef) || href.endsWith(targetRef + '/'))) {
            continue;
        }

        const rect = link.getBoundingClientRect();
        if (rect.height <= 0 || rect.width <= 50) {
            continue;
        }

        return {
            found: true,
            absoluteY: rect.top + window.scrollY,
            screenY: rect.top,
            width: rect.width,
            height: rect.height,
            clickable: true,
            tag: link.tagName,
            text: link.textContent.trim().substring(0, 50),
            href: link.href
        };
    }

    return { found: false };
})()
`

// FindElementByText measures the best-matching element whose rendered text
// contains (or, with exact, equals) the given text. A clean miss is reported
// as Found=false with a nil error; errors mean the measurement channel itself
// failed.
func (r *Resolver) FindElementByText(ctx context.Context, text string, exact bool) (Measurement, error) {
	needle, err := json.Marshal(text)
	if err != nil {
		return Measurement{}, fmt.Errorf("geometry: failed to encode needle: %w", err)
	}

	expr := fmt.Sprintf(findByTextJS, string(needle), exact)

	var m Measurement
	if err := r.session.Evaluate(ctx, expr, &m); err != nil {
		return Measurement{}, fmt.Errorf("geometry: text measurement failed: %w", err)
	}

	if m.Found {
		r.log.Debug("Located element by text",
			zap.String("text", m.Text),
			zap.String("tag", m.Tag),
			zap.Float64("absoluteY", m.AbsoluteY))
	} else {
		r.log.Debug("No element matched text", zap.String("needle", text))
	}
	return m, nil
}

// FindLinkByDomain measures the result link for a domain reference such as
// "site.example" or "site.example/pricing". The bare form matches only the
// domain root; the path form matches exactly that path.
func (r *Resolver) FindLinkByDomain(ctx context.Context, ref string) (Measurement, error) {
	refJSON, err := json.Marshal(ref)
	if err != nil {
		return Measurement{}, fmt.Errorf("geometry: failed to encode domain ref: %w", err)
	}
	baseJSON, err := json.Marshal(baseDomain(ref))
	if err != nil {
		return Measurement{}, fmt.Errorf("geometry: failed to encode base domain: %w", err)
	}

	expr := fmt.Sprintf(findLinkByDomainJS, string(refJSON), string(baseJSON))

	var m Measurement
	if err := r.session.Evaluate(ctx, expr, &m); err != nil {
		return Measurement{}, fmt.Errorf("geometry: domain measurement failed: %w", err)
	}

	if m.Found {
		r.log.Debug("Located domain link",
			zap.String("href", m.Href),
			zap.Float64("absoluteY", m.AbsoluteY))
	} else {
		r.log.Debug("No link matched domain", zap.String("ref", ref))
	}
	return m, nil
}

// DocumentHeight reports the full scrollable document height.
func (r *Resolver) DocumentHeight(ctx context.Context) (float64, error) {
	return r.evalNumber(ctx, "document.documentElement.scrollHeight")
}

// ViewportHeight reports the height the page believes it renders into.
func (r *Resolver) ViewportHeight(ctx context.Context) (float64, error) {
	return r.evalNumber(ctx, "window.innerHeight")
}

// ScrollPosition reports the current vertical scroll offset.
func (r *Resolver) ScrollPosition(ctx context.Context) (float64, error) {
	return r.evalNumber(ctx, "window.scrollY")
}

func (r *Resolver) evalNumber(ctx context.Context, expr string) (float64, error) {
	var n float64
	if err := r.session.Evaluate(ctx, expr, &n); err != nil {
		return 0, fmt.Errorf("geometry: %q failed: %w", expr, err)
	}
	return n, nil
}

// baseDomain strips any path component from "site.example/path", leaving the
// domain used to prefilter candidate links.
func baseDomain(ref string) string {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '/' {
			return ref[:i]
		}
	}
	return ref
}
