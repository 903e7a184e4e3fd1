package extract

import (
	"strings"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// Location derives a delivery location from one inbound message. A native
// geo attachment always wins; otherwise any non-blank text is kept verbatim
// as a free-text location. Returns nil when neither is present.
func (e *Extractor) Location(ev domain.MessageEvent) *domain.Location {
	if ev.Geo != nil {
		return &domain.Location{
			Kind: domain.LocationNative,
			Lat:  ev.Geo.Lat,
			Lon:  ev.Geo.Lon,
		}
	}
	if raw := strings.TrimSpace(ev.Content()); raw != "" {
		return &domain.Location{Kind: domain.LocationText, Raw: raw}
	}
	return nil
}
