// Package syncclient drives one push-then-pull sync cycle against the
// server and owns the in-flight guard and the periodic scheduler.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
)

// ErrSyncInFlight is returned when a cycle is requested while one is
// already running. The caller drops the request; cycles never queue.
var ErrSyncInFlight = errors.New("sync cycle already in flight")

// Store is the device-local persistence the sync client requires.
type Store interface {
	UpsertLocal(ctx context.Context, tx models.Transaction) error
	ListPending(ctx context.Context) ([]models.Transaction, error)
	ClearPending(ctx context.Context) error
	GetCursor(ctx context.Context) (*time.Time, error)
	SetCursor(ctx context.Context, ts time.Time) error
}

// TokenFunc returns the bearer token for the current session.
type TokenFunc func(ctx context.Context) (string, error)

// PushCounts aggregates the server's per-record merge outcomes.
type PushCounts struct {
	Created   int
	Updated   int
	Conflicts int
}

// SyncResult reports one cycle. Success is false only when every attempted
// step failed; callers read partial progress from the counts.
type SyncResult struct {
	Success bool
	Pulled  int
	Pushed  PushCounts
}

// Client runs push-then-pull cycles. At most one cycle runs per instance
// at a time; transport failures are folded into the SyncResult and only
// local storage faults are returned as errors.
type Client struct {
	store      Store
	baseURL    string
	token      TokenFunc
	httpClient *http.Client
	inFlight   atomic.Bool
}

// New creates a sync client. A nil httpClient gets a 30s-timeout default.
func New(store Store, baseURL string, token TokenFunc, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		store:      store,
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
	}
}

// PerformSync runs one cycle: push the pending batch (when non-empty),
// then pull since the current cursor. Push and pull failures are isolated
// from each other; a failed push never skips the pull.
func (c *Client) PerformSync(ctx context.Context) (SyncResult, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return SyncResult{}, ErrSyncInFlight
	}
	defer c.inFlight.Store(false)

	var res SyncResult
	pushAttempted := false
	pushOK := false

	pending, err := c.store.ListPending(ctx)
	if err != nil {
		return res, err
	}

	if len(pending) > 0 {
		pushAttempted = true
		data, err := c.push(ctx, pending)
		if err != nil {
			// Pending queue stays untouched; the next cycle retries and
			// the server's merge is idempotent for unchanged timestamps.
			logger.Log.Errorw("push failed, keeping pending queue", "pending", len(pending), "error", err)
		} else {
			pushOK = true
			res.Pushed = PushCounts{
				Created:   data.Created,
				Updated:   data.Updated,
				Conflicts: data.Conflicts,
			}
			for _, recErr := range data.Errors {
				logger.Log.Warnw("server rejected pushed record", "id", recErr.ID, "reason", recErr.Error)
			}
			if err := c.store.ClearPending(ctx); err != nil {
				return res, err
			}
			if err := c.store.SetCursor(ctx, data.ServerTime); err != nil {
				return res, err
			}
		}
	}

	cursor, err := c.store.GetCursor(ctx)
	if err != nil {
		return res, err
	}

	pullOK := false
	data, err := c.pull(ctx, cursor)
	if err != nil {
		logger.Log.Errorw("pull failed, cursor unchanged", "error", err)
	} else {
		for _, tx := range data.Transactions {
			if err := c.store.UpsertLocal(ctx, tx); err != nil {
				return res, err
			}
		}
		pullOK = true
		res.Pulled = len(data.Transactions)
		if err := c.store.SetCursor(ctx, data.ServerTime); err != nil {
			return res, err
		}
	}

	res.Success = pullOK || (pushAttempted && pushOK)
	return res, nil
}

type pushData struct {
	Created    int                      `json:"created"`
	Updated    int                      `json:"updated"`
	Conflicts  int                      `json:"conflicts"`
	Errors     []models.PushRecordError `json:"errors"`
	ServerTime time.Time                `json:"serverTime"`
}

type pullData struct {
	Transactions []models.Transaction `json:"transactions"`
	ServerTime   time.Time            `json:"serverTime"`
}

func (c *Client) push(ctx context.Context, batch []models.Transaction) (*pushData, error) {
	body := struct {
		Transactions []models.Transaction `json:"transactions"`
	}{Transactions: batch}

	var envelope struct {
		Success bool     `json:"success"`
		Data    pushData `json:"data"`
	}
	if err := c.post(ctx, "/api/v1/sync/push", body, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, errors.New("server reported push failure")
	}
	return &envelope.Data, nil
}

func (c *Client) pull(ctx context.Context, cursor *time.Time) (*pullData, error) {
	body := struct {
		LastSync *string `json:"lastSync,omitempty"`
	}{}
	if cursor != nil {
		formatted := cursor.UTC().Format(time.RFC3339Nano)
		body.LastSync = &formatted
	}

	var envelope struct {
		Success bool     `json:"success"`
		Data    pullData `json:"data"`
	}
	if err := c.post(ctx, "/api/v1/sync/pull", body, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, errors.New("server reported pull failure")
	}
	return &envelope.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("resolve session token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
