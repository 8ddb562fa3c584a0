// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/order"
)

var hundred = decimal.NewFromInt(100)

var receiptTmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}).Parse(receiptTemplate))

// Service renders order receipts
type Service struct {
	company CompanyInfo
	now     func() time.Time
}

// NewService creates a new PDF service
func NewService(cfg *config.Config) *Service {
	return &Service{
		company: CompanyInfo{
			Name:    cfg.App.CompanyName,
			Email:   cfg.App.CompanyEmail,
			Website: cfg.App.PublicURL,
		},
		now: time.Now,
	}
}

// ReceiptData represents the data passed to the receipt template
type ReceiptData struct {
	ReceiptNumber  string
	IssuedAt       string
	Order          *order.Order
	DiscountAmount decimal.Decimal
	Company        CompanyInfo
}

// CompanyInfo represents company information
type CompanyInfo struct {
	Name    string
	Email   string
	Website string
}

// RenderReceipt renders a paid order as a PDF document
func (s *Service) RenderReceipt(o *order.Order) ([]byte, error) {
	htmlContent, err := s.RenderHTML(o)
	if err != nil {
		return nil, err
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(htmlContent))
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	page.Zoom.Set(0.95)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}

	return pdfg.Bytes(), nil
}

// RenderHTML renders the receipt markup fed to wkhtmltopdf
func (s *Service) RenderHTML(o *order.Order) ([]byte, error) {
	issued := s.now()
	if o.PaidAt != nil {
		issued = *o.PaidAt
	}

	data := ReceiptData{
		ReceiptNumber:  receiptNumber(o, issued),
		IssuedAt:       issued.Format("02/01/2006 15:04"),
		Order:          o,
		DiscountAmount: o.Subtotal.Mul(o.DiscountPercent).Div(hundred),
		Company:        s.company,
	}

	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func receiptNumber(o *order.Order, issued time.Time) string {
	return fmt.Sprintf("REC-%s-%06d", issued.Format("20060102"), o.ID)
}

const receiptTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Receipt {{.ReceiptNumber}}</title>
<style>
  body { font-family: Helvetica, sans-serif; font-size: 12px; color: #222; margin: 24px; }
  h1 { font-size: 20px; margin: 0 0 4px; }
  .muted { color: #777; }
  .meta { width: 100%; margin: 16px 0; }
  .meta td { padding: 2px 0; }
  .lines { width: 100%; border-collapse: collapse; }
  .lines th { text-align: left; border-bottom: 1px solid #222; padding: 6px 4px; }
  .lines td { border-bottom: 1px solid #ddd; padding: 6px 4px; }
  .num { text-align: right; }
  .sums { width: 40%; margin: 12px 0 0 auto; }
  .sums td { padding: 3px 4px; }
  .grand td { font-weight: bold; border-top: 1px solid #222; }
</style>
</head>
<body>
<h1>{{.Company.Name}}</h1>
<div class="muted">{{.Company.Email}}{{if .Company.Website}} | {{.Company.Website}}{{end}}</div>

<table class="meta">
  <tr><td>Receipt</td><td>{{.ReceiptNumber}}</td><td>Issued</td><td>{{.IssuedAt}}</td></tr>
  <tr><td>Order</td><td>{{.Order.Reference}}</td><td>Payment</td><td>{{.Order.PaymentID}} ({{.Order.Status}})</td></tr>
  <tr><td>Currency</td><td>{{.Order.Currency}}</td><td>Ships to</td><td>{{with .Order.PostalCode}}{{.}}{{else}}-{{end}}</td></tr>
</table>

<table class="lines">
  <tr><th>Product</th><th class="num">Qty</th><th class="num">Unit</th><th class="num">Amount</th></tr>
  {{range .Order.Items}}
  <tr><td>{{.Title}}</td><td class="num">{{.Quantity}}</td><td class="num">${{money .UnitPrice}}</td><td class="num">${{money .LineTotal}}</td></tr>
  {{end}}
</table>

<table class="sums">
  <tr><td>Subtotal</td><td class="num">${{money .Order.Subtotal}}</td></tr>
  {{if .DiscountAmount.IsPositive}}<tr><td>Discount{{with .Order.DiscountCode}} ({{.}}){{end}}</td><td class="num">-${{money .DiscountAmount}}</td></tr>{{end}}
  <tr><td>Shipping</td><td class="num">${{money .Order.ShippingCost}}</td></tr>
  <tr class="grand"><td>Total</td><td class="num">${{money .Order.Total}}</td></tr>
</table>

<p class="muted">Questions about this purchase? Write to {{.Company.Email}} quoting the order reference.</p>
</body>
</html>
`
