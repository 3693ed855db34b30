package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/determined-ai/hpcoords/pkg/model"
)

const (
	maxFrameSize = 64 << 20
	// skippedFrameCooldown limits how often skipped frames are logged.
	skippedFrameCooldown = 10 * time.Second
)

// StreamError is an error reported by the server, either as an HTTP status or as an error frame
// in the middle of a stream.
type StreamError struct {
	StatusCode int    `json:"code"`
	Message    string `json:"message"`
}

func (e *StreamError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if retried.
func (e *StreamError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

type frame struct {
	Result *model.TrialsSnapshotEvent `json:"result"`
	Error  *StreamError               `json:"error"`
}

// Client reads trials snapshots from a remote hpcoords server.
type Client struct {
	base          *url.URL
	cl            *http.Client
	token         string
	batchesMargin int
	period        time.Duration
	log           *log.Entry
	skipLimiter   *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(cl *http.Client) Option {
	return func(c *Client) { c.cl = cl }
}

// WithToken sends token as a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithBatchesMargin asks the server to include rows within m batches of the selected one.
func WithBatchesMargin(m int) Option {
	return func(c *Client) { c.batchesMargin = m }
}

// WithPeriod asks the server to poll for new rows every d.
func WithPeriod(d time.Duration) Option {
	return func(c *Client) { c.period = d }
}

// New returns a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid server address %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported scheme %q in server address", u.Scheme)
	}
	c := &Client{
		base: u,
		cl:   cleanhttp.DefaultPooledClient(),
		log:  log.WithField("component", "hpcoords-client"),

		skipLimiter: rate.NewLimiter(rate.Every(skippedFrameCooldown), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = u.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.cl.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "sending request")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readError(resp)
	}
	return resp, nil
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &msg); err != nil || msg.Message == "" {
		msg.Message = http.StatusText(resp.StatusCode)
	}
	return &StreamError{StatusCode: resp.StatusCode, Message: msg.Message}
}

// Experiment fetches an experiment's metadata.
func (c *Client) Experiment(ctx context.Context, id int) (*model.Experiment, error) {
	resp, err := c.get(ctx, c.endpoint(fmt.Sprintf("/api/v1/experiments/%d", id), nil))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var exp model.Experiment
	if err := json.NewDecoder(resp.Body).Decode(&exp); err != nil {
		return nil, errors.Wrap(err, "decoding experiment")
	}
	return &exp, nil
}

// IsTerminal reports whether an experiment is in a terminal state. It matches stream.TerminalCheck.
func (c *Client) IsTerminal(ctx context.Context, id int) (bool, error) {
	exp, err := c.Experiment(ctx, id)
	if err != nil {
		return false, err
	}
	return exp.IsTerminal(), nil
}

// Stream implements stream.Source over the server's newline-delimited JSON snapshot endpoint.
// Lines that are not valid frames are skipped.
func (c *Client) Stream(
	ctx context.Context, key model.SnapshotKey, onEvent func(model.TrialsSnapshotEvent) error,
) error {
	q := url.Values{}
	q.Set("metric_name", key.Metric.Name)
	q.Set("metric_type", string(key.Metric.Type))
	q.Set("batches_processed", strconv.Itoa(key.BatchesProcessed))
	if c.batchesMargin > 0 {
		q.Set("batches_margin", strconv.Itoa(c.batchesMargin))
	}
	if c.period > 0 {
		// The server polls in whole seconds.
		q.Set("period_seconds", strconv.Itoa(int(math.Ceil(c.period.Seconds()))))
	}
	endpoint := c.endpoint(fmt.Sprintf("/api/v1/experiments/%d/trials-snapshot", key.ExperimentID), q)

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxFrameSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			if c.skipLimiter.Allow() {
				c.log.WithError(err).Warn("skipping malformed trials snapshot frame")
			}
			continue
		}
		switch {
		case f.Error != nil:
			return f.Error
		case f.Result == nil:
			if c.skipLimiter.Allow() {
				c.log.Warn("skipping trials snapshot frame without a result")
			}
		default:
			if err := onEvent(*f.Result); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, "reading trials snapshot stream")
	}
	return nil
}
