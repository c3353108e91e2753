// Package check provides error checking helpers.
package check

import (
	"io"

	"github.com/1aeo/allium-sub000/log"
)

// Close closes c and logs an error, if it occurs.
func Close(logger log.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Err(logger, err, "close failed")
	}
}
