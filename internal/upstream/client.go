package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"calendar-sync-backend/config"
	"calendar-sync-backend/internal/metrics"
	"calendar-sync-backend/internal/model"
	"calendar-sync-backend/internal/parse"
)

const dateLayout = "2006-01-02"

// Client issues bounded-range calendar queries against the upstream API.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewClient creates a client authenticating with the OAuth2 client-credentials grant.
// Tokens are cached and refreshed by the oauth2 transport.
func NewClient(cfg config.UpstreamConfig, m *metrics.Metrics, log *zap.Logger) *Client {
	var transport http.RoundTripper = http.DefaultTransport
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("invalid proxy URL, upstream requests will not use a proxy",
				zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	base := &http.Client{Transport: transport, Timeout: timeout}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	authed := cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	authed.Timeout = timeout

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    authed,
		log:     log,
		metrics: m,
	}
}

// FetchEvents requests the events of one room for the inclusive date range [from, to].
// Errors wrap ErrRejected or ErrRetrySmaller; see Classify.
func (c *Client) FetchEvents(ctx context.Context, roomKey string, externalID int32, from, to time.Time) ([]model.Event, error) {
	events, err := c.fetch(ctx, roomKey, externalID, from, to)
	if c.metrics != nil {
		c.metrics.UpstreamRequests.WithLabelValues(Classify(err).String()).Inc()
	}
	return events, err
}

func (c *Client) fetch(ctx context.Context, roomKey string, externalID int32, from, to time.Time) ([]model.Event, error) {
	q := url.Values{}
	q.Set("from", from.Format(dateLayout))
	q.Set("to", to.Format(dateLayout))
	endpoint := fmt.Sprintf("%s/rooms/%d/calendar?%s", c.baseURL, externalID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrRejected, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, statusError(resp.StatusCode)
	}

	var body calendarResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrRetrySmaller, err)
	}

	events := make([]model.Event, 0, len(body.Events))
	for _, e := range body.Events {
		events = append(events, c.toModel(roomKey, e))
	}
	return events, nil
}

func (c *Client) toModel(roomKey string, e apiEvent) model.Event {
	entryType, err := parse.EntryType(e.EntryType)
	if err != nil {
		c.log.Debug("unknown entry type", zap.Int64("event", e.ID), zap.Error(err))
	}
	status, err := parse.Status(e.Status)
	if err != nil {
		c.log.Debug("unknown event status", zap.Int64("event", e.ID), zap.Error(err))
	}
	return model.Event{
		ID:                e.ID,
		RoomCode:          roomKey,
		StartAt:           e.Start.UTC(),
		EndAt:             e.End.UTC(),
		TitleDE:           e.Title.DE,
		TitleEN:           e.Title.EN,
		StpType:           e.Type,
		EntryType:         entryType,
		DetailedEntryType: e.DetailedType,
		Status:            status,
	}
}

// statusError decides whether a non-200 status is worth retrying with a smaller range.
func statusError(code int) error {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusRequestEntityTooLarge,
		http.StatusRequestURITooLong,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrRetrySmaller, code)
	default:
		return fmt.Errorf("%w: status %d", ErrRejected, code)
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	switch {
	case errors.As(err, &retrieveErr):
		return fmt.Errorf("%w: token exchange failed: %v", ErrRejected, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %v", ErrRejected, ctx.Err())
	default:
		return fmt.Errorf("%w: http request failed: %v", ErrRetrySmaller, err)
	}
}
