package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// WithholdingSubject sujeto retenido.
type WithholdingSubject struct {
	IDType       string  `json:"tipoIdentificacion"`
	SubjectType  *string `json:"tipoSujetoRetenido,omitempty"` // solo para identificación del exterior
	RelatedParty bool    `json:"parteRel"`
	Name         string  `json:"razonSocial"`
	ID           string  `json:"identificacion"`
}

// SupportTax impuesto del documento sustento (impuestosDocSustento).
type SupportTax struct {
	Code           string          `json:"codImpuestoDocSustento"`
	PercentageCode string          `json:"codigoPorcentaje"`
	TaxableBase    decimal.Decimal `json:"baseImponible"`
	Rate           decimal.Decimal `json:"tarifa"`
	Amount         decimal.Decimal `json:"valorImpuesto"`
}

// Withholding retención aplicada sobre el documento sustento.
type Withholding struct {
	Code            string          `json:"codigo"`          // 1 renta, 2 IVA, 6 ISD
	WithholdingCode string          `json:"codigoRetencion"` // 303, 725, ...
	TaxableBase     decimal.Decimal `json:"baseImponible"`
	Percentage      decimal.Decimal `json:"porcentajeRetener"`
	Amount          decimal.Decimal `json:"valorRetenido"`
}

// SupportDocument documento sustento de la retención (docsSustento/docSustento).
type SupportDocument struct {
	SupportCode         string           `json:"codSustento"`
	Kind                sri.DocumentKind `json:"codDocSustento"`
	Number              string           `json:"numDocSustento"` // 001-001-000000001
	IssueDate           time.Time        `json:"fechaEmisionDocSustento"`
	RecordDate          *time.Time       `json:"fechaRegistroContable,omitempty"`
	AuthorizationNumber *string          `json:"numAutDocSustento,omitempty"`
	PaymentLocation     string           `json:"pagoLocExt"` // 01 local, 02 exterior
	TaxRegime           *string          `json:"tipoRegi,omitempty"`
	PaymentCountry      *string          `json:"paisEfecPago,omitempty"`
	DoubleTaxation      *bool            `json:"aplicConvDobTrib,omitempty"`
	SubjectToRetention  *bool            `json:"pagExtSujRetNorLeg,omitempty"`
	SubtotalBeforeTax   decimal.Decimal  `json:"totalSinImpuestos"`
	Total               decimal.Decimal  `json:"importeTotal"`
	Taxes               []SupportTax     `json:"impuestosDocSustento"`
	Withholdings        []Withholding    `json:"retenciones"`
	Payments            []Payment        `json:"pagos,omitempty"`
}

// WithholdingReceipt comprobante de retención (codDoc 07, esquema 2.0.0).
type WithholdingReceipt struct {
	Header
	Subject      WithholdingSubject `json:"sujetoRetenido"`
	FiscalPeriod time.Time          `json:"periodoFiscal"` // se emite como MM/YYYY
	SupportDocs  []SupportDocument  `json:"docsSustento"`
}

func (*WithholdingReceipt) Kind() sri.DocumentKind { return sri.KindWithholding }
