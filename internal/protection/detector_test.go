package protection

import (
	"net/http"
	"strings"
	"testing"
)

func TestCheckStatusCodes(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		status int
		want   Signal
	}{
		{http.StatusForbidden, SignalAccessDenied},
		{http.StatusServiceUnavailable, SignalCloudflare},
		{http.StatusTooManyRequests, SignalRateLimited},
	}
	for _, tt := range tests {
		r := d.Check(tt.status, "", "")
		if !r.Detected || r.Signal != tt.want {
			t.Errorf("status %d: got %+v, want signal %s", tt.status, r, tt.want)
		}
	}
}

func TestCheckCloudflareChallenge(t *testing.T) {
	d := NewDetector()
	body := `<html><head><title>Just a moment...</title></head><body></body></html>`

	r := d.Check(http.StatusOK, body, "")
	if !r.Detected || r.Signal != SignalCloudflare {
		t.Errorf("got %+v, want cloudflare", r)
	}
}

func TestCheckCaptchaWall(t *testing.T) {
	d := NewDetector()
	body := `<html><body><div class="g-recaptcha" data-sitekey="abc"></div></body></html>`

	r := d.Check(http.StatusOK, body, "")
	if !r.Detected || r.Signal != SignalCaptcha {
		t.Errorf("got %+v, want captcha", r)
	}
}

func TestCheckSPAShell(t *testing.T) {
	d := NewDetector()
	body := `<html><body><div id="root"></div><script src="/bundle.js"></script></body></html>`

	r := d.Check(http.StatusOK, body, "")
	if !r.Detected || r.Signal != SignalJSRequired {
		t.Errorf("got %+v, want javascript_required", r)
	}
}

func TestCheckEmptyContent(t *testing.T) {
	d := NewDetector()
	body := `<html><body><p>hi</p></body></html>`

	r := d.Check(http.StatusOK, body, "hi")
	if !r.Detected || r.Signal != SignalEmptyContent {
		t.Errorf("got %+v, want empty_content", r)
	}
}

func TestCheckRealArticlePasses(t *testing.T) {
	d := NewDetector()
	text := strings.Repeat("A real article paragraph with substance. ", 20)
	body := "<html><body><article><p>" + text + "</p></article></body></html>"

	r := d.Check(http.StatusOK, body, text)
	if r.Detected {
		t.Errorf("real article flagged: %+v", r)
	}
}
