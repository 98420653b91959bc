// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/internal/httputil"
	"github.com/pdiddy/doc-mill/pkg/types"
)

// healthCheckTimeout bounds the construction-time probe of the conversion
// service.
const healthCheckTimeout = 10 * time.Second

// serviceEngine posts documents to a remote conversion service. Retrying a
// streamed upload would need the whole document buffered, so the POST itself
// is never retried here; failed conversions are retried at the batch level
// like any other engine failure.
type serviceEngine struct {
	baseURL string
	token   string
	client  *http.Client
	opts    types.ConvertOptions
	logger  *zap.Logger
}

func newServiceEngine(baseURL, token string, opts types.ConvertOptions, logger *zap.Logger) (*serviceEngine, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("service engine requires a service URL")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid service URL %q", baseURL)
	}

	e := &serviceEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{},
		opts:    opts,
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	resp, err := httputil.Get(ctx, e.client, e.baseURL+"/health", 1)
	if err != nil {
		return nil, fmt.Errorf("conversion service not responding: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return e, nil
}

func (e *serviceEngine) Name() string {
	return fmt.Sprintf("service (%s)", e.baseURL)
}

func (e *serviceEngine) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening document %s: %w", path, err)
	}
	defer f.Close()

	e.logger.Debug("posting document to service", zap.String("path", path))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.convertURL(path), f)
	if err != nil {
		return "", fmt.Errorf("building service request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", convertError(ctx, path, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", convertError(ctx, path, "", fmt.Errorf("reading service response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", convertError(ctx, path, string(body), fmt.Errorf("service returned %s", resp.Status))
	}
	return string(body), nil
}

// convertURL encodes the conversion options as query parameters. The
// artifacts path is deliberately omitted: model placement is the service's
// own concern.
func (e *serviceEngine) convertURL(path string) string {
	q := url.Values{}
	if ext := formatHint(path); ext != "" {
		q.Set("from", ext)
	}
	q.Set("to", "md")
	q.Set("ocr", string(e.opts.OCR))
	q.Set("table_mode", string(e.opts.TableMode))
	if e.opts.DisableTables {
		q.Set("tables", "0")
	}
	if e.opts.Enrichment {
		q.Set("enrich", "1")
	}
	if e.opts.MaxPages > 0 {
		q.Set("max_pages", strconv.Itoa(e.opts.MaxPages))
	}
	if e.opts.RemoteServices {
		q.Set("remote_services", "1")
	}
	return e.baseURL + "/v1/convert?" + q.Encode()
}
