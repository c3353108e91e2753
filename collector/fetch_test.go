package collector

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1aeo/allium-sub000/log"
)

func newTestClient() (*Client, *http.Client) {
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	return NewClient(httpClient, nil, log.NewNop()), httpClient
}

func TestClientFetch(t *testing.T) {
	c, _ := newTestClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://archive.test/doc",
		httpmock.NewStringResponder(200, "document body"))

	body, err := c.Fetch(context.Background(), "http://archive.test/doc")
	require.NoError(t, err)
	assert.Equal(t, "document body", body)
}

func TestClientFetchBadStatus(t *testing.T) {
	c, _ := newTestClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://archive.test/missing",
		httpmock.NewStringResponder(404, "not found"))

	_, err := c.Fetch(context.Background(), "http://archive.test/missing")
	assert.Equal(t, ErrBadStatus, errors.Cause(err))
}

func TestClientFetchTooLarge(t *testing.T) {
	c, _ := newTestClient()
	defer httpmock.DeactivateAndReset()

	c.maxSize = 16
	httpmock.RegisterResponder(http.MethodGet, "http://archive.test/big",
		httpmock.NewStringResponder(200, strings.Repeat("x", 17)))

	_, err := c.Fetch(context.Background(), "http://archive.test/big")
	assert.Equal(t, ErrDocumentTooLarge, errors.Cause(err))
}

func TestClientFetchConnectionError(t *testing.T) {
	c, _ := newTestClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://archive.test/down",
		httpmock.NewErrorResponder(assert.AnError))

	_, err := c.Fetch(context.Background(), "http://archive.test/down")
	assert.Error(t, err)
}
