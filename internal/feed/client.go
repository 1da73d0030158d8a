// Package feed talks to the origin call-tracking platform: bearer-token
// HTTP/JSON, offset pagination against a reported total, retry with backoff
// on transient statuses, and a request rate limiter.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"callrecon/internal"
	"callrecon/internal/calendar"
	"callrecon/internal/config"
	"callrecon/internal/util"
)

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type callsPayload struct {
	Calls      []feedCall `json:"calls"`
	TotalCount int        `json:"totalCount"`
}

type feedCall struct {
	ID           string      `json:"id"`
	CallerNumber string      `json:"callerNumber"`
	TargetName   string      `json:"targetName"`
	CallDateTime string      `json:"callDateTime"`
	Payout       json.Number `json:"payout"`
	Revenue      json.Number `json:"revenue"`
	Duration     int         `json:"durationSeconds"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.FeedTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.FeedRateLimitRPS),
	}
}

// FetchCalls retrieves every call logged against a feed target between two
// instants, advancing the page offset until the reported total is covered.
func (c *Client) FetchCalls(ctx context.Context, targetID string, start, end time.Time, pageSize int) ([]internal.CallRecord, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	all := make([]internal.CallRecord, 0)
	offset := 0
	for {
		query := map[string]string{
			"targetId":  targetID,
			"startDate": start.UTC().Format(time.RFC3339),
			"endDate":   end.UTC().Format(time.RFC3339),
			"offset":    strconv.Itoa(offset),
			"limit":     strconv.Itoa(pageSize),
		}

		body, err := c.fetchJSON(ctx, "calls", query)
		if err != nil {
			return nil, err
		}

		var payload callsPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Calls {
			rec, err := toCallRecord(raw)
			if err != nil {
				continue
			}
			all = append(all, rec)
		}

		offset += len(payload.Calls)
		if len(payload.Calls) == 0 || offset >= payload.TotalCount {
			break
		}
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.FeedAPIToken) == "" {
		return nil, errors.New("missing FEED_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.FeedBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.FeedAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("feed status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("feed api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("feed api unsuccessful: %s", apiResp.Message)
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("feed request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toCallRecord(raw feedCall) (internal.CallRecord, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return internal.CallRecord{}, errors.New("missing call id")
	}

	rec := internal.CallRecord{
		ExternalID:      id,
		CallerPhone:     strings.TrimSpace(raw.CallerNumber),
		Category:        util.OriginCategory(raw.TargetName),
		TimestampRaw:    strings.TrimSpace(raw.CallDateTime),
		DurationSeconds: raw.Duration,
		Payout:          toDecimal(raw.Payout),
		Revenue:         toDecimal(raw.Revenue),
	}
	rec.CallerPhoneNorm = util.NormalizePhone(rec.CallerPhone)
	if parsed, ok := calendar.ParseTimestamp(rec.TimestampRaw); ok {
		rec.Timestamp = &parsed
	}
	return rec, nil
}

func toDecimal(n json.Number) decimal.Decimal {
	if strings.TrimSpace(n.String()) == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
