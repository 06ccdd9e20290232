// Package sri contiene catálogos, la clave de acceso y los errores comunes de
// los comprobantes electrónicos del SRI (Ecuador), según la Ficha Técnica de
// Comprobantes Electrónicos esquema offline.
package sri

import "strings"

// =============================================================================
// Tabla 3 - Tipos de comprobante (codDoc)
// =============================================================================

// DocumentKind código de dos dígitos del tipo de comprobante.
type DocumentKind string

const (
	KindInvoice     DocumentKind = "01" // Factura
	KindCreditNote  DocumentKind = "04" // Nota de crédito
	KindDebitNote   DocumentKind = "05" // Nota de débito
	KindWaybill     DocumentKind = "06" // Guía de remisión
	KindWithholding DocumentKind = "07" // Comprobante de retención
)

// String devuelve el código tal como viaja en codDoc.
func (k DocumentKind) String() string { return string(k) }

// Name nombre del elemento raíz del XML para el tipo de comprobante.
func (k DocumentKind) Name() string {
	switch k {
	case KindInvoice:
		return "factura"
	case KindCreditNote:
		return "notaCredito"
	case KindDebitNote:
		return "notaDebito"
	case KindWaybill:
		return "guiaRemision"
	case KindWithholding:
		return "comprobanteRetencion"
	default:
		return ""
	}
}

// Emittable indica si el tipo de comprobante se puede emitir con este módulo.
func (k DocumentKind) Emittable() bool {
	switch k {
	case KindInvoice, KindCreditNote, KindDebitNote, KindWaybill, KindWithholding:
		return true
	}
	return false
}

// =============================================================================
// Tabla 4 - Tipo de ambiente
// =============================================================================

// Environment ambiente del SRI: pruebas o producción.
type Environment string

const (
	EnvironmentTest       Environment = "1" // Pruebas (celcer.sri.gob.ec)
	EnvironmentProduction Environment = "2" // Producción (cel.sri.gob.ec)
)

// Valid indica si el ambiente es uno de los definidos.
func (e Environment) Valid() bool {
	return e == EnvironmentTest || e == EnvironmentProduction
}

func (e Environment) String() string {
	switch e {
	case EnvironmentTest:
		return "PRUEBAS"
	case EnvironmentProduction:
		return "PRODUCCION"
	default:
		return "DESCONOCIDO(" + string(e) + ")"
	}
}

// ParseEnvironment acepta el código ("1", "2") o el nombre ("pruebas", "produccion"),
// sin distinguir mayúsculas. El servicio de autorización responde con el nombre.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "pruebas", "test":
		return EnvironmentTest, nil
	case "2", "produccion", "producción", "prod":
		return EnvironmentProduction, nil
	}
	return "", invalidField("ambiente", "valor %q no reconocido (usar 1=pruebas o 2=producción)", s)
}

// =============================================================================
// Tabla 2 - Tipo de emisión
// =============================================================================

// EmissionTypeNormal única modalidad vigente en el esquema offline.
const EmissionTypeNormal = "1"

// =============================================================================
// Tabla 6 - Tipo de identificación del comprador / sujeto retenido
// =============================================================================

const (
	IdentificationRUC           = "04"
	IdentificationCedula        = "05"
	IdentificationPassport      = "06"
	IdentificationFinalConsumer = "07"
	IdentificationForeign       = "08"
)

// FinalConsumerID identificación fija del consumidor final.
const FinalConsumerID = "9999999999999"

// ValidIdentificationTypes tipos de identificación aceptados.
var ValidIdentificationTypes = map[string]bool{
	IdentificationRUC: true, IdentificationCedula: true, IdentificationPassport: true,
	IdentificationFinalConsumer: true, IdentificationForeign: true,
}

// =============================================================================
// Tabla 16 - Códigos de impuesto y Tabla 17 - Porcentajes de IVA
// =============================================================================

const (
	TaxIVA    = "2"
	TaxICE    = "3"
	TaxIRBPNR = "5"
)

const (
	IVARate0       = "0"  // 0%
	IVARate12      = "2"  // 12%
	IVARate14      = "3"  // 14%
	IVARate15      = "4"  // 15%
	IVARate5       = "5"  // 5%
	IVANotSubject  = "6"  // No objeto de impuesto
	IVAExempt      = "7"  // Exento de IVA
	IVADifferenced = "8"  // IVA diferenciado
	IVARate13      = "10" // 13%
)

// IVARates tarifa en porcentaje asociada a cada código de porcentaje de IVA.
var IVARates = map[string]string{
	IVARate0:      "0",
	IVARate12:     "12",
	IVARate14:     "14",
	IVARate15:     "15",
	IVARate5:      "5",
	IVANotSubject: "0",
	IVAExempt:     "0",
	IVARate13:     "13",
}

// =============================================================================
// Tabla 24 - Formas de pago
// =============================================================================

const (
	PaymentCash             = "01" // Sin utilización del sistema financiero
	PaymentDebtCompensation = "15"
	PaymentDebitCard        = "16"
	PaymentElectronicMoney  = "17"
	PaymentPrepaidCard      = "18"
	PaymentCreditCard       = "19"
	PaymentFinancialSystem  = "20" // Otros con utilización del sistema financiero
	PaymentEndorsement      = "21"
)

// ValidPaymentMethods formas de pago vigentes.
var ValidPaymentMethods = map[string]bool{
	PaymentCash: true, PaymentDebtCompensation: true, PaymentDebitCard: true,
	PaymentElectronicMoney: true, PaymentPrepaidCard: true, PaymentCreditCard: true,
	PaymentFinancialSystem: true, PaymentEndorsement: true,
}

// =============================================================================
// Comprobante de retención 2.0.0 - Impuestos a retener
// =============================================================================

const (
	WithholdingIncome = "1" // Renta
	WithholdingIVA    = "2" // IVA
	WithholdingISD    = "6" // Impuesto a la salida de divisas
)

// Pago local o al exterior (pagoLocExt).
const (
	PaymentLocal   = "01"
	PaymentForeign = "02"
)

// =============================================================================
// Estados de los servicios web de recepción y autorización
// =============================================================================

const (
	StatusReceived      = "RECIBIDA"
	StatusReturned      = "DEVUELTA"
	StatusAuthorized    = "AUTORIZADO"
	StatusNotAuthorized = "NO AUTORIZADO"
	StatusInProcess     = "EN PROCESO"
	StatusRejected      = "RECHAZADA"
)

// Identificadores de mensajes del SRI usados por el flujo de emisión.
const (
	MessageKeyRegistered = "43" // CLAVE ACCESO REGISTRADA
	MessageInProcess     = "70" // CLAVE DE ACCESO EN PROCESAMIENTO
)
