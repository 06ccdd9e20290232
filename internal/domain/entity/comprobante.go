package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// Document comprobante electrónico listo para construir su XML.
// Las variantes son *Invoice, *CreditNote, *DebitNote, *Waybill y
// *WithholdingReceipt.
type Document interface {
	Kind() sri.DocumentKind
	DocumentHeader() *Header
	sealed()
}

// Issuer datos del emisor (infoTributaria + campos repetidos en info<Comprobante>).
// Los punteros nil se omiten del XML; un puntero a "" emite el elemento vacío.
type Issuer struct {
	RUC                  string  `json:"ruc"`
	LegalName            string  `json:"razonSocial"`
	TradeName            *string `json:"nombreComercial,omitempty"`
	HeadOfficeAddress    string  `json:"dirMatriz"`
	EstablishmentAddress *string `json:"dirEstablecimiento,omitempty"`
	SpecialTaxpayer      *string `json:"contribuyenteEspecial,omitempty"`
	KeepsAccounting      *bool   `json:"obligadoContabilidad,omitempty"`
	WithholdingAgent     *string `json:"agenteRetencion,omitempty"`
	RimpeTaxpayer        *string `json:"contribuyenteRimpe,omitempty"`
}

// Series establecimiento, punto de emisión y secuencial del comprobante.
type Series struct {
	Establishment string `json:"estab"`
	EmissionPoint string `json:"ptoEmi"`
	Sequential    string `json:"secuencial"`
}

// Number número del comprobante en formato 001-001-000000001.
func (s Series) Number() string {
	return sri.FormatDocumentNumber(s.Establishment, s.EmissionPoint, s.Sequential)
}

// Header campos comunes a todos los comprobantes.
type Header struct {
	Issuer           Issuer            `json:"emisor"`
	Series           Series            `json:"serie"`
	IssueDate        time.Time         `json:"fechaEmision"`
	EmissionType     string            `json:"tipoEmision,omitempty"` // vacío = "1" (normal)
	AdditionalFields []AdditionalField `json:"infoAdicional,omitempty"`
}

// DocumentHeader devuelve la cabecera común.
func (h *Header) DocumentHeader() *Header { return h }

func (*Header) sealed() {}

// Buyer comprador o receptor del comprobante.
type Buyer struct {
	IDType  string  `json:"tipoIdentificacion"`
	ID      string  `json:"identificacion"`
	Name    string  `json:"razonSocial"`
	Address *string `json:"direccion,omitempty"`
}

// LineTax impuesto aplicado a una línea (detalle/impuestos/impuesto).
type LineTax struct {
	Code           string          `json:"codigo"`
	PercentageCode string          `json:"codigoPorcentaje"`
	Rate           decimal.Decimal `json:"tarifa"`
	TaxableBase    decimal.Decimal `json:"baseImponible"`
	Amount         decimal.Decimal `json:"valor"`
}

// DetailAttribute detalle adicional de una línea (hasta 3 por línea).
type DetailAttribute struct {
	Name  string `json:"nombre"`
	Value string `json:"valor"`
}

// LineItem línea de factura o nota de crédito.
// En nota de crédito MainCode/AuxCode se emiten como codigoInterno/codigoAdicional.
type LineItem struct {
	MainCode    *string           `json:"codigoPrincipal,omitempty"`
	AuxCode     *string           `json:"codigoAuxiliar,omitempty"`
	Description string            `json:"descripcion"`
	Unit        *string           `json:"unidadMedida,omitempty"`
	Quantity    decimal.Decimal   `json:"cantidad"`
	UnitPrice   decimal.Decimal   `json:"precioUnitario"`
	Discount    decimal.Decimal   `json:"descuento"`
	Subtotal    decimal.Decimal   `json:"precioTotalSinImpuesto"`
	Details     []DetailAttribute `json:"detallesAdicionales,omitempty"`
	Taxes       []LineTax         `json:"impuestos"`
}

// TaxTotal total agrupado por código de impuesto y código de porcentaje.
type TaxTotal struct {
	Code               string           `json:"codigo"`
	PercentageCode     string           `json:"codigoPorcentaje"`
	AdditionalDiscount *decimal.Decimal `json:"descuentoAdicional,omitempty"`
	TaxableBase        decimal.Decimal  `json:"baseImponible"`
	Rate               *decimal.Decimal `json:"tarifa,omitempty"`
	Amount             decimal.Decimal  `json:"valor"`
}

// Payment forma de pago (pagos/pago).
type Payment struct {
	Method   string           `json:"formaPago"`
	Total    decimal.Decimal  `json:"total"`
	Term     *decimal.Decimal `json:"plazo,omitempty"`
	TimeUnit *string          `json:"unidadTiempo,omitempty"`
}

// AdditionalField campo de infoAdicional.
type AdditionalField struct {
	Name  string `json:"nombre"`
	Value string `json:"valor"`
}

// ModifiedDocument comprobante que modifica una nota de crédito o débito.
type ModifiedDocument struct {
	Kind      sri.DocumentKind `json:"codDocModificado"`
	Number    string           `json:"numDocModificado"` // 001-001-000000001
	IssueDate time.Time        `json:"fechaEmisionDocSustento"`
}
