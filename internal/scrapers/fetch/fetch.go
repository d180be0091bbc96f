// Package fetch is the shared http layer of the scrapers. It owns the resty
// client, the per-origin politeness limiter and the status/parse error
// classification every adapter relies on.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"pastpapers-backend/internal/components/assert"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/papers"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Rate is the number of requests per second allowed against a single host.
	Rate  rate.Limit
	Burst int
	// Output receives full http message dumps, it can be nil.
	Output telemetry.MessageOutput
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Rate == 0 {
		o.Rate = 10
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	return o
}

type Client struct {
	http *resty.Client
}

func NewClient(opts Options, tel telemetry.API) *Client {
	assert.NotNil(tel)
	opts = opts.withDefaults()

	httpClient := resty.New()
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetTimeout(opts.Timeout)

	// instrumentation goes first so a request that dies waiting on the limiter
	// is still traced
	telemetry.InstrumentResty(httpClient, tel, opts.Output)

	limiters := NewLimiters(opts.Rate, opts.Burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiters.Wait(req.Context(), req.URL)
	})

	return &Client{http: httpClient}
}

// Page fetches and parses an html page. doc.Url is set to the final url after
// redirects so relative links can be resolved against it.
func (c *Client) Page(ctx context.Context, link string) (*goquery.Document, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", papers.ErrTransport, link, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: get %s: unexpected status %s", papers.ErrTransport, link, res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", papers.ErrParse, link, err)
	}

	doc.Url, err = url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", papers.ErrParse, link, err)
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		doc.Url = res.RawResponse.Request.URL
	}

	return doc, nil
}

// Stream issues a GET and hands back the unread response body, the caller
// must close it.
func (c *Client) Stream(ctx context.Context, link string) (io.ReadCloser, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(link)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", papers.ErrTransport, link, err)
	}

	// resty skips the after-response hooks for unparsed responses, so the
	// request span is closed here
	trace.SpanFromContext(res.Request.Context()).End()

	body := res.RawBody()
	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		if body != nil {
			body.Close()
		}
		return nil, fmt.Errorf("%w: get %s: unexpected status %s", papers.ErrTransport, link, res.Status())
	}
	if body == nil {
		return nil, fmt.Errorf("%w: get %s: empty response", papers.ErrTransport, link)
	}
	return body, nil
}
