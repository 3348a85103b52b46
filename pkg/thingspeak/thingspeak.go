// Package thingspeak publishes sensor tuples to a ThingSpeak-compatible
// ingestion endpoint with a single HTTP GET per update.
package thingspeak

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the ingestion endpoint of the default deployment.
const DefaultBaseURL = "https://hardwareapi-4xbs.onrender.com/update"

// ErrTransport is the negative response-code convention: the request never
// produced an HTTP status.
const ErrTransport = -1

// Update is one cycle's tuple. Field numbering is the wire contract of the
// endpoint: field1=temperature, field2=humidity, field3=soil %,
// field4=LDR counts, field5=gas counts, field6=rain %. The order must not
// be permuted.
type Update struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
	SoilPercent int     // 0..100
	LDRRaw      int     // 0..4095 counts
	GasRaw      int     // 0..4095 counts
	RainPercent int     // 0..70
}

// Values encodes the tuple as the endpoint's query parameters. Floats use
// two decimal places, integers plain decimal digits.
func (u Update) Values(apiKey string) url.Values {
	v := url.Values{}
	v.Set("api_key", apiKey)
	v.Set("field1", strconv.FormatFloat(u.Temperature, 'f', 2, 64))
	v.Set("field2", strconv.FormatFloat(u.Humidity, 'f', 2, 64))
	v.Set("field3", strconv.Itoa(u.SoilPercent))
	v.Set("field4", strconv.Itoa(u.LDRRaw))
	v.Set("field5", strconv.Itoa(u.GasRaw))
	v.Set("field6", strconv.Itoa(u.RainPercent))
	return v
}

// Publisher sends updates to the ingestion endpoint.
type Publisher interface {
	Publish(ctx context.Context, u Update) (int, error)
}

type Client struct {
	client  *http.Client
	limit   *rate.Limiter
	log     *zap.Logger
	baseURL string
	apiKey  string
}

var _ Publisher = (*Client)(nil)

type Option func(c *Client) error

// NewClient builds a publisher. The default rate limit is one update per
// 15 seconds, the ThingSpeak free-tier minimum.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		log:     zap.L(),
		limit:   rate.NewLimiter(rate.Every(15*time.Second), 1),
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		baseURL: DefaultBaseURL,
	}

	// apply the options
	for _, o := range opts {
		err := o(c)
		if err != nil {
			return nil, err
		}
	}

	if c.apiKey == "" {
		return nil, fmt.Errorf("thingspeak: API key is required")
	}

	return c, nil
}

func WithAPIKey(key string) Option {
	return func(c *Client) error {
		c.apiKey = key
		return nil
	}
}

func WithBaseURL(u string) Option {
	return func(c *Client) error {
		if _, err := url.Parse(u); err != nil {
			return fmt.Errorf("thingspeak: invalid base URL: %w", err)
		}
		c.baseURL = u
		return nil
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.client = hc
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		c.log = l
		return nil
	}
}

func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Client) error {
		c.limit = l
		return nil
	}
}

// Publish issues one GET for the update and returns the HTTP status code.
// A negative code means the request never left or no response arrived; the
// update is lost either way, callers do not retry. The response body is
// drained and closed on every path.
func (c *Client) Publish(ctx context.Context, u Update) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// apply the ratelimit
	err := c.limit.Wait(ctx)
	if err != nil {
		c.log.Error("cannot await rate limit", zap.Error(err))
		return ErrTransport, err
	}

	target := c.baseURL + "?" + u.Values(c.apiKey).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.log.Error("cannot create request", zap.Error(err))
		return ErrTransport, err
	}

	c.log.Debug("publishing update", zap.String("url", c.baseURL))
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error("error publishing update", zap.Error(err))
		return ErrTransport, err
	}
	defer resp.Body.Close()

	// Response body is not inspected; drain it so the connection can be
	// reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
