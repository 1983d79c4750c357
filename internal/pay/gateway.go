package pay

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"vpsBack/internal/models"
)

const (
	methodPagePay = "alipay.trade.page.pay"
	methodAppPay  = "alipay.trade.app.pay"

	productPagePay = "FAST_INSTANT_TRADE_PAY"
	productAppPay  = "QUICK_MSECURITY_PAY"

	timestampLayout = "2006-01-02 15:04:05"

	DefaultQRSize   = 2
	DefaultQRMargin = 1
)

type GatewayConfig struct {
	AppID      string
	GatewayURL string
	NotifyURL  string
	ReturnURL  string
	SignType   string
	Charset    string
	PrivateKey *rsa.PrivateKey
	Location   *time.Location
}

// Gateway builds signed payment requests for the redirect/query rail.
type Gateway struct {
	cfg GatewayConfig
	now func() time.Time
}

func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.GatewayURL) == "" {
		return nil, errors.New("pay: app_id/gateway_url are required")
	}
	if cfg.PrivateKey == nil {
		return nil, errors.New("pay: private key is required")
	}
	if cfg.SignType == "" {
		cfg.SignType = SignTypeRSA2
	}
	if cfg.Charset == "" {
		cfg.Charset = "utf-8"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Gateway{cfg: cfg, now: time.Now}, nil
}

// PaymentRequest is what the gateway needs to know about one order.
type PaymentRequest struct {
	TradeID string
	Amount  decimal.Decimal
	Subject string
	Body    string
}

type QROptions struct {
	Size   int
	Margin int
}

// Artifact is a built payment request. Raw artifacts (HTML, QR) carry Body and
// ContentType; the rest carry Data for the JSON envelope.
type Artifact struct {
	Format      models.OutputFormat
	ContentType string
	Body        []byte
	Data        any
	// Params is the signed parameter set, kept for the audit trail.
	Params map[string]string
}

type bizContent struct {
	OutTradeNo  string `json:"out_trade_no"`
	ProductCode string `json:"product_code"`
	TotalAmount string `json:"total_amount"`
	Subject     string `json:"subject"`
	Body        string `json:"body,omitempty"`
}

func (g *Gateway) signedParams(req PaymentRequest, method, productCode string) (map[string]string, error) {
	biz, err := json.Marshal(bizContent{
		OutTradeNo:  req.TradeID,
		ProductCode: productCode,
		TotalAmount: req.Amount.StringFixed(2),
		Subject:     req.Subject,
		Body:        req.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("pay: marshal biz_content: %w", err)
	}
	params := map[string]string{
		"app_id":      g.cfg.AppID,
		"method":      method,
		"format":      "JSON",
		"charset":     g.cfg.Charset,
		"sign_type":   g.cfg.SignType,
		"timestamp":   g.now().In(g.cfg.Location).Format(timestampLayout),
		"version":     "1.0",
		"notify_url":  g.cfg.NotifyURL,
		"return_url":  g.cfg.ReturnURL,
		"biz_content": string(biz),
	}
	if method == methodAppPay {
		delete(params, "return_url")
	}
	sign, err := Sign(Content(params, "sign"), g.cfg.PrivateKey, g.cfg.SignType)
	if err != nil {
		return nil, err
	}
	params["sign"] = sign
	return params, nil
}

// Build returns req in the requested output format.
func (g *Gateway) Build(req PaymentRequest, format models.OutputFormat, qr QROptions) (Artifact, error) {
	switch format {
	case models.FormatHTML, models.FormatURL, models.FormatQR:
		params, err := g.signedParams(req, methodPagePay, productPagePay)
		if err != nil {
			return Artifact{}, err
		}
		art := Artifact{Format: format, Params: params}
		switch format {
		case models.FormatHTML:
			art.ContentType = "text/html; charset=utf-8"
			art.Body = []byte(g.form(params))
		case models.FormatURL:
			art.Data = map[string]string{"url": g.redirectURL(params)}
		case models.FormatQR:
			png, err := renderQR(g.redirectURL(params), qr)
			if err != nil {
				return Artifact{}, err
			}
			art.ContentType = "image/png"
			art.Body = png
		}
		return art, nil
	case models.FormatJSON, models.FormatOrderString:
		params, err := g.signedParams(req, methodAppPay, productAppPay)
		if err != nil {
			return Artifact{}, err
		}
		art := Artifact{Format: format, Params: params}
		if format == models.FormatJSON {
			data := make(map[string]any, len(params))
			for k, v := range params {
				data[k] = v
			}
			data["biz_content"] = json.RawMessage(params["biz_content"])
			art.Data = data
		} else {
			art.Data = map[string]string{"order_string": encodeSorted(params)}
		}
		return art, nil
	default:
		return Artifact{}, models.ErrUnknownFormat
	}
}

func (g *Gateway) redirectURL(params map[string]string) string {
	sep := "?"
	if strings.Contains(g.cfg.GatewayURL, "?") {
		sep = "&"
	}
	return g.cfg.GatewayURL + sep + encodeSorted(params)
}

func (g *Gateway) form(params map[string]string) string {
	keys := sortedKeys(params)
	var b bytes.Buffer
	fmt.Fprintf(&b, `<form id="paysubmit" name="paysubmit" action="%s" method="POST">`, html.EscapeString(g.formAction()))
	for _, k := range keys {
		fmt.Fprintf(&b, `<input type="hidden" name="%s" value="%s"/>`, html.EscapeString(k), html.EscapeString(params[k]))
	}
	b.WriteString(`<input type="submit" value="ok" style="display:none;"></form>`)
	b.WriteString(`<script>document.forms['paysubmit'].submit();</script>`)
	return b.String()
}

func (g *Gateway) formAction() string {
	sep := "?"
	if strings.Contains(g.cfg.GatewayURL, "?") {
		sep = "&"
	}
	return g.cfg.GatewayURL + sep + "charset=" + url.QueryEscape(g.cfg.Charset)
}

func renderQR(content string, opt QROptions) ([]byte, error) {
	size := opt.Size
	if size <= 0 {
		size = DefaultQRSize
	}
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("pay: qr: %w", err)
	}
	// go-qrcode only knows a fixed quiet zone; margin 0 drops it.
	q.DisableBorder = opt.Margin == 0
	return q.PNG(-size)
}

func encodeSorted(params map[string]string) string {
	var b strings.Builder
	for i, k := range sortedKeys(params) {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

func sortedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
