package telemetry

import (
	"io"

	"github.com/uber-go/tally"
	"go.uber.org/atomic"
)

// Download counts bytes retrieved from remote archives.
type Download struct {
	c     tally.Counter
	total *atomic.Int64
}

// NewDownload builds a Download reporting to the given counter.
func NewDownload(c tally.Counter) *Download {
	return &Download{
		c:     c,
		total: atomic.NewInt64(0),
	}
}

func (d *Download) Write(p []byte) (int, error) {
	n := len(p)
	d.c.Inc(int64(n))
	d.total.Add(int64(n))
	return n, nil
}

// WrapReader counts every byte read through r.
func (d *Download) WrapReader(r io.Reader) io.Reader {
	return io.TeeReader(r, d)
}

// Total returns the number of bytes counted so far.
func (d *Download) Total() int64 {
	return d.total.Load()
}
