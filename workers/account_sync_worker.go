// workers/account_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"challenge-ledger/services"

	"go.uber.org/zap"
)

// RemoteProfile is the part of the profile sync payload the ledger needs.
type RemoteProfile struct {
	ID            string    `json:"id"`
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	AccountStatus string    `json:"account_status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// AccountSyncWorker polls the profile sync service and provisions a
// zero-balance point account for every user it reports. Existing balances
// are never modified.
type AccountSyncWorker struct {
	points       *services.PointService
	interval     time.Duration
	baseURL      string // e.g. "http://localhost:8500"
	endpointPath string // e.g. "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client

	mu    sync.Mutex
	since time.Time
}

func NewAccountSyncWorker(points *services.PointService, syncServiceBaseURL, endpointPath, serviceToken string, interval time.Duration) *AccountSyncWorker {
	return &AccountSyncWorker{
		points:       points,
		interval:     interval,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *AccountSyncWorker) Start(ctx context.Context) {
	zap.L().Info("starting account sync worker", zap.String("base_url", w.baseURL), zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *AccountSyncWorker) run(ctx context.Context) {
	// Initial run backfills from the beginning of time.
	if _, err := w.SyncOnce(ctx); err != nil {
		zap.L().Warn("initial account sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				zap.L().Error("account sync batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			zap.L().Info("account sync worker stopped")
			return
		}
	}
}

// SyncOnce fetches profile changes since the last successful batch and
// provisions their accounts. It returns how many profiles were processed.
func (w *AccountSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	profiles, err := w.fetch(ctx, w.since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	latest := w.since
	var failed int
	for _, p := range profiles {
		if p.ExternalID == "" {
			continue
		}
		if _, err := w.points.EnsureAccount(ctx, p.ExternalID); err != nil {
			failed++
			zap.L().Warn("failed to provision point account",
				zap.String("external_id", p.ExternalID),
				zap.String("username", p.Username),
				zap.Error(err))
			continue
		}
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}

	// A failed profile keeps the cursor where it was so the next batch retries it.
	if failed == 0 {
		w.since = latest
	}
	zap.L().Info("account sync batch done",
		zap.Int("profiles", len(profiles)),
		zap.Int("failed", failed),
		zap.Time("cursor", w.since))

	if failed > 0 {
		return len(profiles), fmt.Errorf("%d of %d accounts failed to provision", failed, len(profiles))
	}
	return len(profiles), nil
}

func (w *AccountSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL %q: %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", endpointURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service non-200 response: %d: %s", resp.StatusCode, string(body))
	}

	var out profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return out.Users, nil
}
