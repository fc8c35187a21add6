package domain

import (
	"fmt"
	"strings"
	"time"
)

// Well-known platform identifiers. Records may carry any platform string;
// these are the venues the bundled sources and tests refer to.
const (
	PlatformPolymarket = "polymarket"
	PlatformKalshi     = "kalshi"
	PlatformManifold   = "manifold"
	PlatformPredictIt  = "predictit"
)

// MarketRecord is one normalized listing from a venue. Platform adapters
// produce it upstream; within a scan it is treated as immutable.
type MarketRecord struct {
	Platform string  `json:"platform"`
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Volume   float64 `json:"volume"`

	// Optional fields.
	Slug      string    `json:"slug,omitempty"`
	URL       string    `json:"url,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// HasValidPrice reports whether the record's price lies in (0, 1].
func (r MarketRecord) HasValidPrice() bool {
	return r.Price > 0 && r.Price <= 1
}

// Key returns the platform-qualified identifier "platform:id".
func (r MarketRecord) Key() string {
	return r.Platform + ":" + r.ID
}

// Validate checks the fields a source must always populate.
func (r MarketRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.Platform) == "":
		return fmt.Errorf("%w: empty platform", ErrInvalidRecord)
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: empty id for platform %s", ErrInvalidRecord, r.Platform)
	case r.Volume < 0:
		return fmt.Errorf("%w: negative volume for %s", ErrInvalidRecord, r.Key())
	}
	return nil
}
