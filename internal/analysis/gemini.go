// Package analysis sends page images of a stored document to a generative
// model and returns its verdict on figure and table numbering.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"

	"github.com/dgallion1/tocpages/internal/apperr"
)

// Image is one stored page offered to the model. Path is only read when
// images are inlined.
type Image struct {
	URI  string
	Path string
}

// Verdict is the model's answer for one scope.
type Verdict struct {
	Scope     string          `json:"scope"`
	ImageURIs []string        `json:"image_uris"`
	Text      string          `json:"text"`
	Raw       json.RawMessage `json:"raw"`
}

// Options configures a Client.
type Options struct {
	APIKey       string
	Model        string
	BaseURL      string
	RPS          float64 // sustained requests per second
	InlineImages bool
}

// Client calls the Gemini generateContent API. Calls are throttled and
// never retried.
type Client struct {
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter
	stats      *LLMStats
}

func NewClient(opts Options, stats *LLMStats) *Client {
	if opts.RPS <= 0 {
		opts.RPS = 1
	}
	if stats == nil {
		stats = NewLLMStats(time.Hour)
	}
	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), 1),
		stats:   stats,
	}
}

// Stats exposes the latency window shared with the stats endpoint.
func (c *Client) Stats() *LLMStats {
	return c.stats
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Check asks the model to verify numbering and formatting for one scope.
func (c *Client) Check(ctx context.Context, scope string, images []Image) (*Verdict, error) {
	if c.opts.APIKey == "" {
		return nil, apperr.Processing(nil, "generative API key is not configured")
	}

	uris := make([]string, len(images))
	for i, img := range images {
		uris[i] = img.URI
	}
	parts := []part{{Text: BuildPrompt(scope, uris)}}
	if c.opts.InlineImages {
		for _, img := range images {
			p, err := inlinePart(img.Path)
			if err != nil {
				return nil, apperr.Processing(err, "inline %s", img.URI)
			}
			parts = append(parts, p)
		}
	}

	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("analysis throttle: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.opts.BaseURL, "/"), url.PathEscape(c.opts.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.opts.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.stats.Record(time.Since(start).Milliseconds())
	if err != nil {
		return nil, apperr.Upstream(0, fmt.Sprintf("analysis service: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(resp.StatusCode, string(respBody))
	}

	var apiResp generateResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, apperr.Upstream(http.StatusBadGateway, fmt.Sprintf("decode response: %v", err))
	}

	return &Verdict{
		Scope:     scope,
		ImageURIs: uris,
		Text:      responseText(apiResp),
		Raw:       json.RawMessage(respBody),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func responseText(r generateResponse) string {
	var sb strings.Builder
	for _, cand := range r.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

func inlinePart(path string) (part, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return part{}, err
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return part{}, fmt.Errorf("not an image: %s", mt.String())
	}
	return part{InlineData: &inlineData{
		MimeType: mt.String(),
		Data:     base64.StdEncoding.EncodeToString(data),
	}}, nil
}
