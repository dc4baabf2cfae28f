package sitestatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"github.com/InstaWP/iwp-mu/internal/state"
)

const memoKey = "site_status"

// memoTTL bounds how long a process trusts its in-memory copy over the
// option store, which other processes may have refreshed.
const memoTTL = 5 * time.Second

// entry is the persisted form of a fetched status.
type entry struct {
	Data       Status `json:"data"`
	UpdateTime int64  `json:"update_time"`
}

// Service serves the site status from the option store, refetching it
// once the stored copy is older than the TTL. Between fetches the
// remaining seconds count down with the clock.
//
// The in-memory memo is per process. It only saves repeated option reads
// within a short window and never outlives the entry's own freshness.
type Service struct {
	fetcher Fetcher
	options state.OptionStore
	siteURL string
	ttl     time.Duration
	memo    *gocache.Cache
	now     func() time.Time
}

// NewService creates a status service for siteURL
func NewService(fetcher Fetcher, options state.OptionStore, siteURL string, ttl time.Duration) *Service {
	return &Service{
		fetcher: fetcher,
		options: options,
		siteURL: siteURL,
		ttl:     ttl,
		memo:    gocache.New(memoTTL, time.Minute),
		now:     time.Now,
	}
}

// WithClock replaces the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the current status. Fetch failures produce a zero status,
// which is stored like any other result; only store errors are returned.
func (s *Service) Get(ctx context.Context) (Status, error) {
	e, err := s.load(ctx)
	if err != nil {
		return Status{}, err
	}

	if e == nil || !s.fresh(e) {
		return s.Refresh(ctx)
	}

	now := s.now().Unix()
	status := e.Data
	status.RemainingSecs = max(0, status.RemainingSecs-(now-e.UpdateTime))
	return status, nil
}

// Refresh fetches the status and stores it regardless of its age
func (s *Service) Refresh(ctx context.Context) (Status, error) {
	status, err := s.fetcher.Fetch(ctx, s.siteURL)
	if err != nil {
		log.WithContext(ctx).WithField("site", s.siteURL).Warnf("site status unavailable: %v", err)
		status = Status{}
	}

	e := &entry{Data: status, UpdateTime: s.now().Unix()}
	value, err := json.Marshal(e)
	if err != nil {
		return Status{}, fmt.Errorf("failed to encode site status: %w", err)
	}
	if err := s.options.SetOption(ctx, state.SiteStatusOption, value); err != nil {
		return Status{}, fmt.Errorf("failed to store site status: %w", err)
	}
	s.remember(e)

	return status, nil
}

func (s *Service) load(ctx context.Context) (*entry, error) {
	if cached, ok := s.memo.Get(memoKey); ok {
		if e := cached.(*entry); s.fresh(e) {
			return e, nil
		}
		s.memo.Delete(memoKey)
	}

	value, ok, err := s.options.GetOption(ctx, state.SiteStatusOption)
	if err != nil {
		return nil, fmt.Errorf("failed to read site status: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var e entry
	if err := json.Unmarshal(value, &e); err != nil {
		log.WithContext(ctx).Warnf("discarding unreadable site status: %v", err)
		return nil, nil
	}
	s.remember(&e)
	return &e, nil
}

func (s *Service) fresh(e *entry) bool {
	return s.now().Unix()-e.UpdateTime <= int64(s.ttl/time.Second)
}

// remember memoizes e for memoTTL or until it goes stale, whichever is first.
func (s *Service) remember(e *entry) {
	left := time.Duration(e.UpdateTime-s.now().Unix())*time.Second + s.ttl
	if left <= 0 {
		s.memo.Delete(memoKey)
		return
	}
	s.memo.Set(memoKey, e, min(left, memoTTL))
}
