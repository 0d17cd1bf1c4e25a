package extractor

import (
	"errors"

	"github.com/roman-kulish/gantry-extractors/internal/bus"
	"github.com/roman-kulish/gantry-extractors/internal/clowder"
)

// Retryable marks a platform call failure for redelivery. Requests the
// platform rejected as invalid stay permanent.
func Retryable(err error) error {
	var httpErr *clowder.HTTPError
	if errors.As(err, &httpErr) && !httpErr.Temporary() {
		return err
	}
	return bus.Transient(err)
}
