package density

import "errors"

var (
	// ErrEmptySample is returned when a kernel density estimate is
	// requested for an empty point cloud.
	ErrEmptySample = errors.New("density: empty sample")
)
