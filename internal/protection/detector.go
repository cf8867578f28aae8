// Package protection detects bot-protection and challenge pages in fetched
// link content. A page behind Cloudflare or a captcha wall yields no real
// article text; detecting it up front gives the user a clear error instead
// of an analysis of the challenge page.
package protection

import (
	"net/http"
	"regexp"
	"strings"
)

// Signal identifies the type of protection detected.
type Signal string

const (
	SignalNone         Signal = ""
	SignalCloudflare   Signal = "cloudflare"
	SignalCaptcha      Signal = "captcha"
	SignalAccessDenied Signal = "access_denied"
	SignalRateLimited  Signal = "rate_limited"
	SignalEmptyContent Signal = "empty_content"
	SignalJSRequired   Signal = "javascript_required"
)

// Result describes what was detected on a fetched page.
type Result struct {
	Detected    bool
	Signal      Signal
	Description string
}

// Detector analyzes fetched pages for bot-protection signals.
type Detector struct {
	// MinContentLength is the minimum visible text length for a real page.
	// Shorter pages are treated as challenge or placeholder pages.
	MinContentLength int
}

// NewDetector creates a detector with default settings.
func NewDetector() *Detector {
	return &Detector{MinContentLength: 300}
}

// Check analyzes a fetched page. body is the raw HTML, visibleText the
// extracted text content.
func (d *Detector) Check(statusCode int, body, visibleText string) Result {
	if r := d.checkStatus(statusCode); r.Detected {
		return r
	}
	if r := d.checkBody(body); r.Detected {
		return r
	}
	if len(strings.TrimSpace(visibleText)) < d.MinContentLength {
		if r := d.checkEmptyPage(body); r.Detected {
			return r
		}
	}
	return Result{}
}

func (d *Detector) checkStatus(statusCode int) Result {
	switch statusCode {
	case http.StatusForbidden:
		return Result{
			Detected:    true,
			Signal:      SignalAccessDenied,
			Description: "access denied (HTTP 403), the site is blocking automated requests",
		}
	case http.StatusServiceUnavailable:
		return Result{
			Detected:    true,
			Signal:      SignalCloudflare,
			Description: "service unavailable (HTTP 503), likely a challenge page",
		}
	case http.StatusTooManyRequests:
		return Result{
			Detected:    true,
			Signal:      SignalRateLimited,
			Description: "rate limited (HTTP 429) by the target site",
		}
	}
	return Result{}
}

var (
	cloudflareMarkers = []string{
		"cf-browser-verification",
		"challenge-platform",
		"cf_chl_opt",
		"_cf_chl",
		"Checking your browser",
		"Just a moment...",
		"Attention Required! | Cloudflare",
	}

	captchaMarkers = []string{
		"g-recaptcha",
		"h-captcha",
		"data-sitekey",
		"captcha-container",
		"cf-turnstile",
	}

	accessDeniedMarkers = []string{
		"Access Denied",
		"Access to this page has been denied",
		"You don't have permission",
		"Request blocked",
		"Bot detected",
		"Please verify you are human",
		"are you a robot",
	}

	// Empty SPA shells mean the content only exists after JS execution.
	spaRootPatterns = []*regexp.Regexp{
		regexp.MustCompile(`<div\s+id=["'](?:root|app|__next|__nuxt)["'][^>]*>\s*</div>`),
		regexp.MustCompile(`<app-root[^>]*>\s*</app-root>`),
	}

	jsRequiredMarkers = []string{
		"enable JavaScript",
		"JavaScript is required",
		"Please enable JavaScript",
	}
)

func (d *Detector) checkBody(body string) Result {
	for _, marker := range cloudflareMarkers {
		if strings.Contains(body, marker) {
			return Result{
				Detected:    true,
				Signal:      SignalCloudflare,
				Description: "Cloudflare challenge page detected",
			}
		}
	}
	for _, marker := range captchaMarkers {
		if strings.Contains(body, marker) {
			return Result{
				Detected:    true,
				Signal:      SignalCaptcha,
				Description: "captcha wall detected",
			}
		}
	}
	for _, marker := range accessDeniedMarkers {
		if strings.Contains(body, marker) {
			return Result{
				Detected:    true,
				Signal:      SignalAccessDenied,
				Description: "the site refused automated access",
			}
		}
	}
	return Result{}
}

// checkEmptyPage classifies a page with too little visible text.
func (d *Detector) checkEmptyPage(body string) Result {
	for _, p := range spaRootPatterns {
		if p.MatchString(body) {
			return Result{
				Detected:    true,
				Signal:      SignalJSRequired,
				Description: "the page renders its content with JavaScript and cannot be read server side",
			}
		}
	}
	for _, marker := range jsRequiredMarkers {
		if strings.Contains(body, marker) {
			return Result{
				Detected:    true,
				Signal:      SignalJSRequired,
				Description: "the page requires JavaScript to display content",
			}
		}
	}
	return Result{
		Detected:    true,
		Signal:      SignalEmptyContent,
		Description: "the page contains no readable content",
	}
}
