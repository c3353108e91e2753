package telemetry

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
)

func TestDownloadCountsBytes(t *testing.T) {
	d := NewDownload(tally.NoopScope.Counter("bytes"))

	body, err := io.ReadAll(d.WrapReader(strings.NewReader("hello world")))
	require.NoError(t, err)

	assert.Equal(t, "hello world", string(body))
	assert.Equal(t, int64(11), d.Total())
}
