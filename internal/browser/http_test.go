package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autopilot/internal/domain"
)

const competitorPage = `<!doctype html>
<html><head><title> Acme Builder </title>
<script src="https://cdn.example.com/react.js"></script>
<script>inline()</script>
</head><body>
<h2>Drag and drop</h2>
<div class="feature">Templates</div>
<span class="PriceTag">$29/mo</span>
<h3>Hosting</h3>
</body></html>`

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(competitorPage))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTP_ExtractsSelectors(t *testing.T) {
	srv := newPageServer(t)
	port := NewHTTP(5*time.Second, "autopilot-test")
	ctx := context.Background()

	doc, err := port.Open(ctx, srv.URL, domain.WaitNetworkIdle)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	if doc.Title() != "Acme Builder" {
		t.Errorf("unexpected title %q", doc.Title())
	}

	pricing, _ := doc.Texts(ctx, `[class*="price"], [class*="Price"]`)
	if len(pricing) != 1 || pricing[0] != "$29/mo" {
		t.Errorf("unexpected pricing %v", pricing)
	}

	features, _ := doc.Texts(ctx, "h2, h3, .feature")
	if len(features) != 3 {
		t.Errorf("expected 3 feature nodes, got %v", features)
	}

	scripts, _ := doc.Attrs(ctx, "script[src]", "src")
	if len(scripts) != 1 || scripts[0] != "https://cdn.example.com/react.js" {
		t.Errorf("unexpected scripts %v", scripts)
	}
}

func TestHTTP_NonSuccessIsFetchError(t *testing.T) {
	srv := newPageServer(t)
	port := NewHTTP(5*time.Second, "")

	_, err := port.Open(context.Background(), srv.URL+"/missing", domain.WaitLoad)
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.Target != srv.URL+"/missing" {
		t.Errorf("expected FetchError naming the target, got %v", err)
	}
}

func TestOff_Unavailable(t *testing.T) {
	var port domain.Port = Off{}
	if port.Available() {
		t.Error("Off must report unavailable")
	}
	if _, err := port.Open(context.Background(), "https://example.com", domain.WaitLoad); !errors.Is(err, domain.ErrPortUnavailable) {
		t.Errorf("expected ErrPortUnavailable, got %v", err)
	}
}

func TestRod_OpenBeforeLaunch(t *testing.T) {
	r := NewRod(RodConfig{})
	if r.Available() {
		t.Error("unlaunched browser must be unavailable")
	}
	if _, err := r.Open(context.Background(), "https://example.com", domain.WaitLoad); !errors.Is(err, domain.ErrPortUnavailable) {
		t.Errorf("expected ErrPortUnavailable, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("closing an unlaunched browser should be a no-op, got %v", err)
	}
}
