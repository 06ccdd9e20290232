package entity

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// Invoice factura (codDoc 01, esquema 1.1.0).
type Invoice struct {
	Header
	Buyer             Buyer            `json:"comprador"`
	RemissionGuide    *string          `json:"guiaRemision,omitempty"`
	SubtotalBeforeTax decimal.Decimal  `json:"totalSinImpuestos"`
	TotalDiscount     decimal.Decimal  `json:"totalDescuento"`
	TaxTotals         []TaxTotal       `json:"totalConImpuestos"`
	Tip               *decimal.Decimal `json:"propina,omitempty"`
	Total             decimal.Decimal  `json:"importeTotal"`
	Currency          *string          `json:"moneda,omitempty"`
	Payments          []Payment        `json:"pagos,omitempty"`
	Lines             []LineItem       `json:"detalles"`
}

func (*Invoice) Kind() sri.DocumentKind { return sri.KindInvoice }
