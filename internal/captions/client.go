package captions

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

const defaultBaseURL = "https://video.google.com/timedtext"

type Config struct {
	BaseURL string `json:"base_url"`
	Lang    string `json:"lang"`
	Timeout int    `json:"timeout"`
}

// Client fetches caption tracks from the YouTube timedtext endpoint.
type Client struct {
	baseURL string
	lang    string
	client  *http.Client
}

func New(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	lang := strings.TrimSpace(cfg.Lang)
	if lang == "" {
		lang = "en"
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		lang:    lang,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Lang() string {
	return c.lang
}

type timedText struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// GetTranscript returns the video's caption segments in time order.
// A video without a caption track in the configured language yields
// errs.ErrNoCaptions.
func (c *Client) GetTranscript(ctx context.Context, videoID string) ([]model.TranscriptSegment, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, fmt.Errorf("%w: video id is required", errs.ErrInvalid)
	}
	endpoint := fmt.Sprintf("%s?lang=%s&v=%s", strings.TrimRight(c.baseURL, "/"), url.QueryEscape(c.lang), url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: fetch captions: %v", errs.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: fetch captions: %v", errs.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, errs.ErrNoCaptions
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: timedtext request failed: %s: %s", errs.ErrUpstream, resp.Status, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read captions: %v", errs.ErrUpstream, err)
	}
	// the endpoint answers 200 with an empty body when no track exists
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errs.ErrNoCaptions
	}
	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse captions: %v", errs.ErrUpstream, err)
	}
	segments := make([]model.TranscriptSegment, 0, len(doc.Texts))
	for _, item := range doc.Texts {
		// caption bodies are frequently double-escaped (&amp;#39;)
		text := strings.TrimSpace(html.UnescapeString(html.UnescapeString(item.Body)))
		if text == "" {
			continue
		}
		segments = append(segments, model.TranscriptSegment{
			Text:  text,
			Start: item.Start,
			Dur:   item.Dur,
		})
	}
	if len(segments) == 0 {
		return nil, errs.ErrNoCaptions
	}
	logutil.GetLogger(ctx).Debug("captions fetched",
		zap.String("video_id", videoID),
		zap.String("lang", c.lang),
		zap.Int("segments", len(segments)),
	)
	return segments, nil
}

// Concat joins segments into one text blob with a single space between
// fragments, matching the ingestion contract the splitter sees.
func Concat(segments []model.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
