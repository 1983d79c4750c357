package models

// RailTag prefixes every trade id and identifies the payment rail that owns it.
type RailTag string

const (
	RailGateway RailTag = "700"
	RailInApp   RailTag = "900"
)

// Name is a readable label used in logs and events.
func (t RailTag) Name() string {
	switch t {
	case RailGateway:
		return "gateway"
	case RailInApp:
		return "in_app"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known rails.
func (t RailTag) Valid() bool {
	return t == RailGateway || t == RailInApp
}

// OutputFormat selects how a gateway payment artifact is returned to the client.
type OutputFormat string

const (
	FormatHTML        OutputFormat = "HTML"
	FormatQR          OutputFormat = "QR"
	FormatJSON        OutputFormat = "JSON"
	FormatURL         OutputFormat = "URL"
	FormatOrderString OutputFormat = "orderString"
)

// ParseOutputFormat accepts the exact wire names only.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatHTML, FormatQR, FormatJSON, FormatURL, FormatOrderString:
		return f, nil
	default:
		return "", ErrUnknownFormat
	}
}
