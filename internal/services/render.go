package services

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/extract"
	"github.com/tbourn/go-order-backend/internal/finalize"
)

// renderSnapshot produces the outbound message text for a finalized order.
// Field order is fixed so repeated renders of the same snapshot are
// byte-identical; absent fields are omitted rather than rendered empty.
func renderSnapshot(ex *extract.Extractor, snap finalize.Snapshot) string {
	var b strings.Builder

	b.WriteString("🆕 Yangi buyurtma\n")
	if snap.UserName != "" {
		fmt.Fprintf(&b, "👤 %s\n", snap.UserName)
	}
	if snap.GroupTitle != "" {
		fmt.Fprintf(&b, "🏪 %s\n", snap.GroupTitle)
	}

	for _, p := range snap.ClientPhones {
		fmt.Fprintf(&b, "📞 %s\n", ex.FormatDisplay(p))
	}
	if loc := renderLocation(snap.Location); loc != "" {
		fmt.Fprintf(&b, "📍 %s\n", loc)
	}
	if len(snap.ProductLines) > 0 {
		b.WriteString("🛒 Buyurtma:\n")
		for _, line := range snap.ProductLines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	if len(snap.CommentLines) > 0 {
		b.WriteString("💬 Izoh:\n")
		for _, line := range snap.CommentLines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	if snap.Amount != nil {
		fmt.Fprintf(&b, "💵 Summa: %d\n", *snap.Amount)
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderOrder renders a persisted order, used by the update flow where the
// replacement message is rebuilt from the stored row instead of a session.
func renderOrder(ex *extract.Extractor, o *domain.Order) string {
	var b strings.Builder

	b.WriteString("♻️ Buyurtma yangilandi\n")
	if o.UserName != "" {
		fmt.Fprintf(&b, "👤 %s\n", o.UserName)
	}
	if o.GroupTitle != "" {
		fmt.Fprintf(&b, "🏪 %s\n", o.GroupTitle)
	}
	for _, p := range o.Phones {
		fmt.Fprintf(&b, "📞 %s\n", ex.FormatDisplay(p))
	}
	if loc := renderLocation(o.Location); loc != "" {
		fmt.Fprintf(&b, "📍 %s\n", loc)
	}
	if o.ProductText != "" {
		b.WriteString("🛒 Buyurtma:\n")
		for _, line := range strings.Split(o.ProductText, "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	if o.CommentText != "" {
		b.WriteString("💬 Izoh:\n")
		for _, line := range strings.Split(o.CommentText, "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	if o.Amount != nil {
		fmt.Fprintf(&b, "💵 Summa: %d\n", *o.Amount)
	}

	return strings.TrimRight(b.String(), "\n")
}

func renderLocation(loc *domain.Location) string {
	if loc == nil {
		return ""
	}
	switch loc.Kind {
	case domain.LocationNative:
		return fmt.Sprintf("https://maps.google.com/?q=%f,%f", loc.Lat, loc.Lon)
	case domain.LocationText:
		return loc.Raw
	}
	return ""
}
