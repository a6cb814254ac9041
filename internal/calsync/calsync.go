// Package calsync polls the external calendar feed and mirrors its events
// into the job directory so they show up on the board as read-only blocks.
package calsync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"fieldboard/config"
	"fieldboard/internal/model"
	"fieldboard/internal/parse"
	"fieldboard/internal/store"
)

const timestampLayout = "2006-01-02 15:04:05"

// Service orchestrates the calendar sync.
type Service struct {
	cfg      config.CalendarSyncConfig
	store    store.Store
	client   *http.Client
	loc      *time.Location
	logger   *zap.SugaredLogger
	onSynced func(ctx context.Context)
}

// NewService creates a calendar sync service. onSynced, if set, runs after
// every sync that changed the stored events.
func NewService(cfg config.CalendarSyncConfig, st store.Store, logger *zap.SugaredLogger, onSynced func(ctx context.Context)) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.Warnw("invalid proxy URL, calendar sync will not use a proxy", "proxy", cfg.HTTPProxy, "error", err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			logger.Warnw("unknown feed timezone, using local time", "timezone", cfg.Timezone, "error", err)
		} else {
			loc = l
		}
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}

	return &Service{
		cfg:   cfg,
		store: st,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		loc:      loc,
		logger:   logger,
		onSynced: onSynced,
	}
}

// Run syncs immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("calendar sync is disabled, not starting")
		return
	}
	s.logger.Infow("starting calendar sync", "interval", s.cfg.Interval)

	s.syncLogged(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("calendar sync shutting down")
			return
		case <-timer.C:
			s.syncLogged(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) syncLogged(ctx context.Context) {
	if _, err := s.SyncOnce(ctx); err != nil {
		s.logger.Errorw("calendar sync failed", "error", err)
	}
}

// SyncOnce fetches the whole feed and replaces the stored events with it.
// A failed page aborts the cycle so a partial feed never prunes events.
func (s *Service) SyncOnce(ctx context.Context) (store.EventSyncResult, error) {
	now := time.Now().UTC()

	var all []store.FeedEvent
	total := 1
	pageSize := s.cfg.PageSize
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			return store.EventSyncResult{}, errors.Wrapf(err, "fetch page %d", page)
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		all = append(all, resp.Data.Items...)
		s.logger.Debugw("fetched feed page", "page", page, "items", len(all), "total", total)
	}

	techs, err := s.store.ListTechnicians(ctx)
	if err != nil {
		return store.EventSyncResult{}, err
	}

	events := make([]store.FeedEvent, 0, len(all))
	for _, e := range all {
		start, err := s.parseTimestamp(e.Start)
		if err != nil {
			s.logger.Warnw("skipping event with bad start", "event", e.ID, "error", err)
			continue
		}
		end, err := s.parseTimestamp(e.End)
		if err != nil {
			s.logger.Warnw("skipping event with bad end", "event", e.ID, "error", err)
			continue
		}
		if !start.Before(end) {
			s.logger.Warnw("skipping event that ends before it starts", "event", e.ID)
			continue
		}
		e.StartParsed, e.EndParsed = start, end
		s.matchTechnician(&e, techs)
		events = append(events, e)
	}

	res, err := s.store.ReplaceCalendarEvents(ctx, now, events)
	if err != nil {
		return store.EventSyncResult{}, err
	}
	s.logger.Infow("calendar sync finished", "upserted", res.Upserted, "removed", res.Removed)

	if s.onSynced != nil && (res.Upserted > 0 || res.Removed > 0) {
		s.onSynced(ctx)
	}
	return res, nil
}

// matchTechnician sets e.TechnicianID from the feed's own match, then from a
// technician hint in the title, then from the event's creator.
func (s *Service) matchTechnician(e *store.FeedEvent, techs []model.Technician) {
	if e.MatchedTechnicianID != nil && *e.MatchedTechnicianID != "" {
		id := *e.MatchedTechnicianID
		e.TechnicianID = &id
		return
	}
	pt := parse.ParseTitle(e.Title)
	if id, ok := parse.MatchTechnician(pt.Hint, techs); ok {
		e.TechnicianID = &id
		e.Title = pt.Title
		return
	}
	if id, ok := parse.MatchTechnician(e.CreatedBy, techs); ok {
		e.TechnicianID = &id
	}
}

// parseTimestamp converts the feed's timestamp string into a time.Time in the
// configured timezone. RFC 3339 values carry their own offset.
func (s *Service) parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(timestampLayout, ts, s.loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", ts)
	}
	return t, nil
}

// fetchPage fetches a single page of events from the feed.
func (s *Service) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	payload := make(map[string]any, len(s.cfg.Payload)+2)
	maps.Copy(payload, s.cfg.Payload)
	payload["page"] = page
	payload["pageSize"] = s.cfg.PageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "http request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, errors.Wrap(err, "unmarshal feed response")
	}
	if apiResp.Code != 0 {
		return nil, errors.Newf("feed returned non-zero application code: %d", apiResp.Code)
	}
	return &apiResp, nil
}
