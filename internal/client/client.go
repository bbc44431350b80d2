package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"hothour-sync/internal/model"
	"hothour-sync/internal/session"
	"hothour-sync/pkg/apierror"
	"hothour-sync/pkg/uid"
)

// Client consumes the HotHour REST API. Snapshot responses are
// normalized here, at the ingestion boundary: nothing past this point
// ever does a dual-spelling field lookup.
type Client struct {
	baseURL string
	http    *http.Client
	session session.Provider
}

// New creates a REST client. baseURL is the backend root without a
// trailing slash, e.g. "http://127.0.0.1:8000".
func New(baseURL string, timeout time.Duration, sess session.Provider) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		session: sess,
	}
}

// AuctionDraft is the admin create/update payload. The status field on
// update drives cancellation.
type AuctionDraft struct {
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Instructor       string `json:"instructor,omitempty"`
	StartPrice       string `json:"start_price"`
	FloorPrice       string `json:"floor_price"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	DropIntervalMins int    `json:"drop_interval_mins,omitempty"`
	DropAmount       string `json:"drop_amount,omitempty"`
	TurboEnabled     bool   `json:"turbo_enabled,omitempty"`
	TurboTriggerMins int    `json:"turbo_trigger_mins,omitempty"`
	Status           string `json:"status,omitempty"`
}

// ListAuctions fetches the full collection snapshot with computed
// prices included.
func (c *Client) ListAuctions(ctx context.Context) ([]model.Auction, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/auctions?include_computed=true", nil, false)
	if err != nil {
		return nil, err
	}

	raws, err := model.DecodeRawList(body)
	if err != nil {
		return nil, apierror.NetworkFailure(err.Error())
	}

	auctions := make([]model.Auction, 0, len(raws))
	for _, raw := range raws {
		a, err := model.NormalizeAuction(raw)
		if err != nil {
			log.Printf("[Client] skipping malformed auction record: %v", err)
			continue
		}
		auctions = append(auctions, a)
	}
	return auctions, nil
}

// GetAuction fetches a single-auction snapshot.
func (c *Client) GetAuction(ctx context.Context, id int64) (model.Auction, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/auctions/%d", id), nil, false)
	if err != nil {
		return model.Auction{}, err
	}

	raw, err := model.DecodeRaw(body)
	if err != nil {
		return model.Auction{}, apierror.NetworkFailure(err.Error())
	}
	a, err := model.NormalizeAuction(raw)
	if err != nil {
		return model.Auction{}, apierror.NetworkFailure(err.Error())
	}
	return a, nil
}

// CreateAuction creates an auction (admin).
func (c *Client) CreateAuction(ctx context.Context, draft AuctionDraft) (model.Auction, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/auctions/", draft, true)
	if err != nil {
		return model.Auction{}, err
	}
	return decodeAuction(body)
}

// UpdateAuction updates an auction (admin); setting draft.Status to
// CANCELLED cancels it.
func (c *Client) UpdateAuction(ctx context.Context, id int64, draft AuctionDraft) (model.Auction, error) {
	body, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/auctions/%d", id), draft, true)
	if err != nil {
		return model.Auction{}, err
	}
	return decodeAuction(body)
}

// DeleteAuction removes an auction (admin).
func (c *Client) DeleteAuction(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/auctions/%d", id), nil, true)
	return err
}

type bookRequest struct {
	AuctionID int64 `json:"auction_id"`
	UserID    int64 `json:"user_id"`
}

// BookAuction attempts to atomically claim the auction for userID.
// Exactly one request per call; a 409 maps to the Conflict error kind.
func (c *Client) BookAuction(ctx context.Context, auctionID, userID int64) (model.Reservation, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/reservations/book",
		bookRequest{AuctionID: auctionID, UserID: userID}, true)
	if err != nil {
		return model.Reservation{}, err
	}

	raw, err := model.DecodeRaw(body)
	if err != nil {
		return model.Reservation{}, apierror.NetworkFailure(err.Error())
	}
	return model.NormalizeReservation(raw), nil
}

func decodeAuction(body []byte) (model.Auction, error) {
	raw, err := model.DecodeRaw(body)
	if err != nil {
		return model.Auction{}, apierror.NetworkFailure(err.Error())
	}
	a, err := model.NormalizeAuction(raw)
	if err != nil {
		return model.Auction{}, apierror.NetworkFailure(err.Error())
	}
	return a, nil
}

// do issues one request and maps failures to the typed error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, auth bool) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, apierror.NetworkFailure(err.Error())
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, apierror.NetworkFailure(err.Error())
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uid.New())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token := c.session.Token()
		if token == "" {
			return nil, apierror.Unauthenticated("")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierror.NetworkFailure(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.NetworkFailure(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierror.FromResponse(resp.StatusCode, body)
	}
	return body, nil
}
