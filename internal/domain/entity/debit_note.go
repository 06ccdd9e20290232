package entity

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// DebitNoteReason motivo de la nota de débito con su valor.
type DebitNoteReason struct {
	Reason string          `json:"razon"`
	Value  decimal.Decimal `json:"valor"`
}

// DebitNote nota de débito (codDoc 05, esquema 1.0.0).
type DebitNote struct {
	Header
	Buyer             Buyer             `json:"comprador"`
	Rise              *string           `json:"rise,omitempty"`
	Modified          ModifiedDocument  `json:"docModificado"`
	SubtotalBeforeTax decimal.Decimal   `json:"totalSinImpuestos"`
	Taxes             []LineTax         `json:"impuestos"`
	Total             decimal.Decimal   `json:"valorTotal"`
	Payments          []Payment         `json:"pagos,omitempty"`
	Reasons           []DebitNoteReason `json:"motivos"`
}

func (*DebitNote) Kind() sri.DocumentKind { return sri.KindDebitNote }
