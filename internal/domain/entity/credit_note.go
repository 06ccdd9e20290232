package entity

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// CreditNote nota de crédito (codDoc 04, esquema 1.1.0).
type CreditNote struct {
	Header
	Buyer             Buyer            `json:"comprador"`
	Rise              *string          `json:"rise,omitempty"`
	Modified          ModifiedDocument `json:"docModificado"`
	SubtotalBeforeTax decimal.Decimal  `json:"totalSinImpuestos"`
	ModificationValue decimal.Decimal  `json:"valorModificacion"`
	Currency          *string          `json:"moneda,omitempty"`
	TaxTotals         []TaxTotal       `json:"totalConImpuestos"`
	Reason            string           `json:"motivo"`
	Lines             []LineItem       `json:"detalles"`
}

func (*CreditNote) Kind() sri.DocumentKind { return sri.KindCreditNote }
