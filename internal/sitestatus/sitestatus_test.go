package sitestatus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/InstaWP/iwp-mu/internal/state"
)

func newStatusServer(t *testing.T, status int, body string) (*httptest.Server, *int32, *string) {
	t.Helper()
	var calls int32
	var domain string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/api/v2/sites/get-basic-details" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q, want application/json", r.Header.Get("Accept"))
		}
		domain = r.URL.Query().Get("domain")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls, &domain
}

func TestClient_Fetch(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Status
		wantErr bool
	}{
		{
			name:   "numeric minutes",
			status: http.StatusOK,
			body:   `{"status":true,"data":{"type":"temporary","remaining_mins":90,"current_status":"running"}}`,
			want:   Status{Type: "temporary", RemainingMins: 90, CurrentStatus: "running", RemainingSecs: 5400},
		},
		{
			name:   "string minutes",
			status: http.StatusOK,
			body:   `{"data":{"type":"reserved","remaining_mins":"15","current_status":"running"}}`,
			want:   Status{Type: "reserved", RemainingMins: 15, CurrentStatus: "running", RemainingSecs: 900},
		},
		{
			name:   "no data",
			status: http.StatusOK,
			body:   `{"success":false,"data":null}`,
			want:   Status{},
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `oops`,
			wantErr: true,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _, domain := newStatusServer(t, tt.status, tt.body)
			client := NewClient(server.URL+"/api/v2", 5*time.Second)

			got, err := client.Fetch(context.Background(), "https://demo.instawp.xyz")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Fetch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Fetch() = %+v, want %+v", got, tt.want)
			}
			if *domain != "demo.instawp.xyz" {
				t.Errorf("domain = %q, want demo.instawp.xyz", *domain)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://demo.instawp.xyz", "demo.instawp.xyz"},
		{"http://demo.instawp.xyz/blog", "demo.instawp.xyz/blog"},
		{"demo.instawp.xyz", "demo.instawp.xyz"},
	}
	for _, tt := range tests {
		if got := Domain(tt.in); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeFetcher struct {
	calls  int
	status Status
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, siteURL string) (Status, error) {
	f.calls++
	return f.status, f.err
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestService_CountsDownBetweenFetches(t *testing.T) {
	fetcher := &fakeFetcher{status: Status{Type: "temporary", RemainingMins: 60, RemainingSecs: 3600}}
	store := state.NewMemory()
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	svc := NewService(fetcher, store, "https://demo.instawp.xyz", 30*time.Minute).WithClock(c.Now)
	ctx := context.Background()

	got, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RemainingSecs != 3600 || fetcher.calls != 1 {
		t.Fatalf("Get() = %+v after %d fetches, want 3600s after 1", got, fetcher.calls)
	}

	c.now = c.now.Add(10 * time.Minute)
	got, err = svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RemainingSecs != 3000 {
		t.Errorf("Get() RemainingSecs = %d, want 3000", got.RemainingSecs)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetches = %d, want 1 within TTL", fetcher.calls)
	}

	// A fresh service on the same store reads the persisted copy.
	other := NewService(fetcher, store, "https://demo.instawp.xyz", 30*time.Minute).WithClock(c.Now)
	if got, _ := other.Get(ctx); got.RemainingSecs != 3000 || fetcher.calls != 1 {
		t.Errorf("other Get() = %+v after %d fetches, want 3000s from the store", got, fetcher.calls)
	}

	c.now = c.now.Add(21 * time.Minute)
	fetcher.status = Status{Type: "temporary", RemainingMins: 20, RemainingSecs: 1200}
	got, err = svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if fetcher.calls != 2 || got.RemainingSecs != 1200 {
		t.Errorf("Get() after TTL = %+v after %d fetches, want refetched 1200s", got, fetcher.calls)
	}
}

func TestService_ClampsAtZero(t *testing.T) {
	fetcher := &fakeFetcher{status: Status{RemainingMins: 1, RemainingSecs: 60}}
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	svc := NewService(fetcher, state.NewMemory(), "demo", time.Hour).WithClock(c.Now)

	if _, err := svc.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	c.now = c.now.Add(5 * time.Minute)

	got, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RemainingSecs != 0 {
		t.Errorf("Get() RemainingSecs = %d, want 0", got.RemainingSecs)
	}
}

func TestService_FetchFailureStoresZeroStatus(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	store := state.NewMemory()
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	svc := NewService(fetcher, store, "demo", 30*time.Minute).WithClock(c.Now)
	ctx := context.Background()

	got, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got != (Status{}) {
		t.Errorf("Get() = %+v, want zero status", got)
	}

	raw, ok, err := store.GetOption(ctx, state.SiteStatusOption)
	if err != nil || !ok {
		t.Fatalf("GetOption() = %v, %v", ok, err)
	}
	var stored struct {
		Data       map[string]any `json:"data"`
		UpdateTime int64          `json:"update_time"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("stored option is not JSON: %v", err)
	}
	if stored.UpdateTime != c.now.Unix() {
		t.Errorf("update_time = %d, want %d", stored.UpdateTime, c.now.Unix())
	}
	for _, key := range []string{"type", "remaining_mins", "current_status", "remaining_secs"} {
		if _, ok := stored.Data[key]; !ok {
			t.Errorf("stored data missing %s", key)
		}
	}

	if _, err := svc.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetches = %d, want the failure cached", fetcher.calls)
	}
}

func TestService_SeesRefreshFromAnotherService(t *testing.T) {
	store := state.NewMemory()
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	ctx := context.Background()

	first := &fakeFetcher{status: Status{Type: "temporary", RemainingSecs: 3600}}
	svc := NewService(first, store, "demo", 30*time.Minute).WithClock(c.Now)
	if _, err := svc.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// The memoized copy is stale by the service clock; another process
	// has already refreshed the option.
	c.now = c.now.Add(31 * time.Minute)
	second := &fakeFetcher{status: Status{Type: "permanent", RemainingSecs: 0}}
	other := NewService(second, store, "demo", 30*time.Minute).WithClock(c.Now)
	if _, err := other.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	got, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Type != "permanent" {
		t.Errorf("Get() Type = %q, want the refreshed option", got.Type)
	}
	if first.calls != 1 {
		t.Errorf("fetches = %d, want 1", first.calls)
	}
}

func TestService_MemoNeverOutlivesEntry(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		wantHit bool
	}{
		{name: "fresh entry", age: 0, wantHit: true},
		{name: "nearly stale entry", age: 30*time.Minute - time.Second, wantHit: true},
		{name: "stale entry", age: 30 * time.Minute, wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{now: time.Unix(1_700_000_000, 0)}
			svc := NewService(&fakeFetcher{}, state.NewMemory(), "demo", 30*time.Minute).WithClock(c.Now)
			svc.remember(&entry{UpdateTime: c.now.Add(-tt.age).Unix()})

			_, expires, ok := svc.memo.GetWithExpiration(memoKey)
			if ok != tt.wantHit {
				t.Fatalf("memoized = %v, want %v", ok, tt.wantHit)
			}
			if ok && time.Until(expires) > memoTTL {
				t.Errorf("memo expires in %v, want at most %v", time.Until(expires), memoTTL)
			}
		})
	}
}

func TestService_DiscardsUnreadableOption(t *testing.T) {
	store := state.NewMemory()
	ctx := context.Background()
	if err := store.SetOption(ctx, state.SiteStatusOption, []byte("not json")); err != nil {
		t.Fatalf("SetOption() error = %v", err)
	}

	fetcher := &fakeFetcher{status: Status{Type: "temporary", RemainingSecs: 120}}
	svc := NewService(fetcher, store, "demo", time.Hour)

	got, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if fetcher.calls != 1 || got.Type != "temporary" {
		t.Errorf("Get() = %+v after %d fetches, want a fresh fetch", got, fetcher.calls)
	}
}

func TestBreakdown(t *testing.T) {
	tests := []struct {
		secs    int64
		want    TimeLeft
		display string
	}{
		{0, TimeLeft{}, "00h 00m 00s"},
		{-5, TimeLeft{}, "00h 00m 00s"},
		{59, TimeLeft{Seconds: 59}, "00h 00m 59s"},
		{3661, TimeLeft{Hours: 1, Minutes: 1, Seconds: 1}, "01h 01m 01s"},
		{90061, TimeLeft{Days: 1, Hours: 1, Minutes: 1, Seconds: 1}, "01d 01h 01m 01s"},
	}

	for _, tt := range tests {
		got := Breakdown(tt.secs)
		if got != tt.want {
			t.Errorf("Breakdown(%d) = %+v, want %+v", tt.secs, got, tt.want)
		}
		if got.String() != tt.display {
			t.Errorf("Breakdown(%d).String() = %q, want %q", tt.secs, got.String(), tt.display)
		}
	}

	if got := (Status{RemainingSecs: 120}).TimeLeft(); got.Minutes != 2 {
		t.Errorf("TimeLeft() = %+v, want 2 minutes", got)
	}
}
