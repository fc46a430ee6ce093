package discovery

import "errors"

var (
	// ErrInvalidProfile is returned for search profiles or instance properties
	// that cannot be used.
	ErrInvalidProfile = errors.New("invalid service profile")

	// ErrDuplicateProfile is returned when two profiles share a routing key.
	ErrDuplicateProfile = errors.New("duplicate service profile")

	// ErrNoProfiles is returned when a finder would have nothing to track.
	ErrNoProfiles = errors.New("no service profiles")
)
