package collector

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/1aeo/allium-sub000/check"
	"github.com/1aeo/allium-sub000/log"
	"github.com/1aeo/allium-sub000/telemetry"
)

// MaxDocumentSize is the maximum accepted size of a fetched document.
// Oversized responses are treated as fetch failures.
const MaxDocumentSize = 16 << 20

// Fetch errors.
var (
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")
	ErrBadStatus        = errors.New("unexpected http status")
)

// Client fetches remote documents with a size cap.
type Client struct {
	http     *http.Client
	maxSize  int64
	download *telemetry.Download
	logger   log.Logger
}

// NewClient builds a document fetch client. A nil httpClient uses
// http.DefaultClient; a nil download skips byte accounting.
func NewClient(httpClient *http.Client, download *telemetry.Download, logger log.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:     httpClient,
		maxSize:  MaxDocumentSize,
		download: download,
		logger:   log.ForComponent(logger, "fetch"),
	}
}

// Fetch retrieves the document at url and decodes it to text. The context
// bounds the whole operation.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "fetch %s", url)
	}
	defer check.Close(c.logger, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(ErrBadStatus, "fetch %s: status %d", url, resp.StatusCode)
	}

	var r io.Reader = io.LimitReader(resp.Body, c.maxSize+1)
	if c.download != nil {
		r = c.download.WrapReader(r)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", url)
	}
	if int64(len(body)) > c.maxSize {
		return "", errors.Wrapf(ErrDocumentTooLarge, "fetch %s", url)
	}

	c.logger.Debug("fetched document", "url", url, "size", len(body))

	return string(body), nil
}
