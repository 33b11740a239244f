// Package client implements the SideFX build-distribution API client:
// token-managed RPC calls for listing builds and resolving signed
// download URLs, plus the streaming download entry point.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/houdl/houdl/client/auth"
	"github.com/houdl/houdl/client/download"
	"github.com/houdl/houdl/client/throttle"
)

const (
	defaultBaseURL = "https://www.sidefx.com"
	tokenPath      = "/oauth2/application_token"
	apiPath        = "/api"

	// envelopeField is the single form field the API endpoint reads.
	envelopeField = "json"

	methodListBuilds      = "download.get_daily_builds_list"
	methodResolveDownload = "download.get_daily_build_download"
)

// Client talks to the build-distribution service. Every RPC call goes
// through the auth manager first, so a valid cached token means zero
// extra network activity. One Client is safe for sequential reuse
// across calls; it holds no per-call state.
type Client struct {
	c      *http.Client
	auth   *auth.Manager
	apiURL string
	logger *slog.Logger
	tracer trace.Tracer
}

// Build constructs a Client for the given application credentials.
// Defaults target the production service with an in-memory token
// cache, no timeout, and a no-op tracer.
func Build(creds auth.Credentials, optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(""),
	}

	if opts.client != nil {
		client.c = opts.client
	}
	if opts.logger != nil {
		client.logger = opts.logger
	}
	if opts.tracer != nil {
		client.tracer = opts.tracer
	}
	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, client.logger, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	baseURL := defaultBaseURL
	if opts.baseURL != "" {
		baseURL = opts.baseURL
	}
	client.apiURL = baseURL + apiPath
	client.auth = auth.NewManager(baseURL+tokenPath, creds, opts.store, client.c, client.logger)

	return client, nil
}

// ListBuilds queries the daily-builds list matching the given query.
func (c *Client) ListBuilds(ctx context.Context, query BuildQuery) ([]BuildRecord, error) {
	if err := Validate(query); err != nil {
		return nil, fmt.Errorf("validating query: %w", err)
	}

	body, err := c.call(ctx, methodListBuilds, query)
	if err != nil {
		return nil, err
	}

	var builds []BuildRecord
	if err := json.Unmarshal(body, &builds); err != nil {
		return nil, newDecodeError(body, err)
	}

	return builds, nil
}

type downloadParams struct {
	Product  Product  `json:"product"`
	Platform Platform `json:"platform"`
	Version  string   `json:"version"`
	Build    uint64   `json:"build"`
}

// ResolveDownload obtains a signed, time-limited download descriptor
// for one specific build. Descriptors are short-lived; resolve one per
// download attempt rather than caching them.
func (c *Client) ResolveDownload(ctx context.Context, product Product, platform Platform, version string, build uint64) (DownloadDescriptor, error) {
	params := downloadParams{
		Product:  product,
		Platform: platform,
		Version:  version,
		Build:    build,
	}

	body, err := c.call(ctx, methodResolveDownload, params)
	if err != nil {
		return DownloadDescriptor{}, err
	}

	var desc DownloadDescriptor
	if err := json.Unmarshal(body, &desc); err != nil {
		return DownloadDescriptor{}, newDecodeError(body, err)
	}
	if desc.DownloadURL == "" {
		return DownloadDescriptor{}, newDecodeError(body, errors.New("missing download_url"))
	}

	return desc, nil
}

// Download streams the archive at desc.DownloadURL to dst, folding the
// bytes into the content digest and reporting progress per chunk. The
// URL is itself signed and time-limited, so the request carries no
// bearer token. Bytes already written stay in dst on failure; callers
// wanting atomicity should write to a temporary path and rename only
// after a Verified or HashMismatch result, never on a transport
// failure or cancellation.
func (c *Client) Download(ctx context.Context, desc DownloadDescriptor, dst io.Writer, opts ...download.Option) (download.Result, error) {
	ctx, span := c.tracer.Start(ctx, "client.download")
	span.SetAttributes(
		attribute.String("filename", desc.Filename),
		attribute.Int64("size", int64(desc.Size)),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.DownloadURL, nil)
	if err != nil {
		return download.Result{}, fmt.Errorf("instantiating download request: %w", err)
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return download.Result{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close download body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return download.Result{}, &UnexpectedStatusError{
			StatusCode: resp.StatusCode,
			Body:       readErrBody(resp.Body),
			Err:        ErrUnexpectedStatusCode,
		}
	}

	c.logger.Debug("download started", "filename", desc.Filename, "size", desc.Size)

	return download.Run(ctx, resp.Body, dst, desc.Hash, opts...)
}

// call posts one RPC envelope to the API endpoint and returns the raw
// response body. The envelope is a single form field holding the JSON
// array [method, [], params] serialized to a string, authorized with a
// bearer token obtained from the auth manager.
func (c *Client) call(ctx context.Context, method string, params any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "client.call")
	span.SetAttributes(attribute.String("rpc.method", method))
	defer span.End()

	tok, err := c.auth.EnsureToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("ensuring token: %w", err)
	}

	envelope, err := json.Marshal([3]any{method, []any{}, params})
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	form := url.Values{envelopeField: []string{string(envelope)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("X-Request-Id", reqID)
	span.SetAttributes(attribute.String("request.id", reqID))

	c.logger.Debug("api call", "method", method, "request_id", reqID)

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UnexpectedStatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(body),
			Err:        ErrUnexpectedStatusCode,
		}
	}

	return body, nil
}

func readErrBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrBodySize))
	if err != nil {
		return "unable to read body"
	}

	return string(b)
}
