package sri

import "encoding/xml"

// Estructuras de serialización de los esquemas offline del SRI. El orden de
// los campos es el orden de los elementos en el XSD; los punteros nil y los
// slices vacíos no se emiten.

type infoTributaria struct {
	Ambiente           string  `xml:"ambiente"`
	TipoEmision        string  `xml:"tipoEmision"`
	RazonSocial        string  `xml:"razonSocial"`
	NombreComercial    *string `xml:"nombreComercial,omitempty"`
	RUC                string  `xml:"ruc"`
	ClaveAcceso        string  `xml:"claveAcceso"`
	CodDoc             string  `xml:"codDoc"`
	Estab              string  `xml:"estab"`
	PtoEmi             string  `xml:"ptoEmi"`
	Secuencial         string  `xml:"secuencial"`
	DirMatriz          string  `xml:"dirMatriz"`
	AgenteRetencion    *string `xml:"agenteRetencion,omitempty"`
	ContribuyenteRimpe *string `xml:"contribuyenteRimpe,omitempty"`
}

type campoAdicional struct {
	Nombre string `xml:"nombre,attr"`
	Valor  string `xml:",chardata"`
}

type infoAdicional struct {
	Campos []campoAdicional `xml:"campoAdicional"`
}

type totalImpuesto struct {
	Codigo             string  `xml:"codigo"`
	CodigoPorcentaje   string  `xml:"codigoPorcentaje"`
	DescuentoAdicional *string `xml:"descuentoAdicional,omitempty"`
	BaseImponible      string  `xml:"baseImponible"`
	Tarifa             *string `xml:"tarifa,omitempty"`
	Valor              string  `xml:"valor"`
}

type impuesto struct {
	Codigo           string `xml:"codigo"`
	CodigoPorcentaje string `xml:"codigoPorcentaje"`
	Tarifa           string `xml:"tarifa"`
	BaseImponible    string `xml:"baseImponible"`
	Valor            string `xml:"valor"`
}

type pago struct {
	FormaPago    string  `xml:"formaPago"`
	Total        string  `xml:"total"`
	Plazo        *string `xml:"plazo,omitempty"`
	UnidadTiempo *string `xml:"unidadTiempo,omitempty"`
}

type detAdicional struct {
	Nombre string `xml:"nombre,attr"`
	Valor  string `xml:"valor,attr"`
}

// Contenedores opcionales: con `xml:"a>b"` encoding/xml emite <a></a> aunque
// el slice esté vacío, así que se omiten con un puntero nil.
type pagosXML struct {
	Pagos []pago `xml:"pago"`
}

type detallesAdicionalesXML struct {
	Detalles []detAdicional `xml:"detAdicional"`
}

// ── Factura 1.1.0 ─────────────────────────────────────────────────────────────

type facturaXML struct {
	XMLName        xml.Name         `xml:"factura"`
	ID             string           `xml:"id,attr"`
	Version        string           `xml:"version,attr"`
	InfoTributaria infoTributaria   `xml:"infoTributaria"`
	InfoFactura    infoFactura      `xml:"infoFactura"`
	Detalles       []detalleFactura `xml:"detalles>detalle"`
	InfoAdicional  *infoAdicional   `xml:"infoAdicional,omitempty"`
}

type infoFactura struct {
	FechaEmision                string          `xml:"fechaEmision"`
	DirEstablecimiento          *string         `xml:"dirEstablecimiento,omitempty"`
	ContribuyenteEspecial       *string         `xml:"contribuyenteEspecial,omitempty"`
	ObligadoContabilidad        *string         `xml:"obligadoContabilidad,omitempty"`
	TipoIdentificacionComprador string          `xml:"tipoIdentificacionComprador"`
	GuiaRemision                *string         `xml:"guiaRemision,omitempty"`
	RazonSocialComprador        string          `xml:"razonSocialComprador"`
	IdentificacionComprador     string          `xml:"identificacionComprador"`
	DireccionComprador          *string         `xml:"direccionComprador,omitempty"`
	TotalSinImpuestos           string          `xml:"totalSinImpuestos"`
	TotalDescuento              string          `xml:"totalDescuento"`
	TotalConImpuestos           []totalImpuesto `xml:"totalConImpuestos>totalImpuesto"`
	Propina                     *string         `xml:"propina,omitempty"`
	ImporteTotal                string          `xml:"importeTotal"`
	Moneda                      *string         `xml:"moneda,omitempty"`
	Pagos                       *pagosXML       `xml:"pagos,omitempty"`
}

type detalleFactura struct {
	CodigoPrincipal        *string                 `xml:"codigoPrincipal,omitempty"`
	CodigoAuxiliar         *string                 `xml:"codigoAuxiliar,omitempty"`
	Descripcion            string                  `xml:"descripcion"`
	UnidadMedida           *string                 `xml:"unidadMedida,omitempty"`
	Cantidad               string                  `xml:"cantidad"`
	PrecioUnitario         string                  `xml:"precioUnitario"`
	Descuento              string                  `xml:"descuento"`
	PrecioTotalSinImpuesto string                  `xml:"precioTotalSinImpuesto"`
	DetallesAdicionales    *detallesAdicionalesXML `xml:"detallesAdicionales,omitempty"`
	Impuestos              []impuesto              `xml:"impuestos>impuesto"`
}

// ── Nota de crédito 1.1.0 ─────────────────────────────────────────────────────

type notaCreditoXML struct {
	XMLName         xml.Name             `xml:"notaCredito"`
	ID              string               `xml:"id,attr"`
	Version         string               `xml:"version,attr"`
	InfoTributaria  infoTributaria       `xml:"infoTributaria"`
	InfoNotaCredito infoNotaCredito      `xml:"infoNotaCredito"`
	Detalles        []detalleNotaCredito `xml:"detalles>detalle"`
	InfoAdicional   *infoAdicional       `xml:"infoAdicional,omitempty"`
}

type infoNotaCredito struct {
	FechaEmision                string          `xml:"fechaEmision"`
	DirEstablecimiento          *string         `xml:"dirEstablecimiento,omitempty"`
	TipoIdentificacionComprador string          `xml:"tipoIdentificacionComprador"`
	RazonSocialComprador        string          `xml:"razonSocialComprador"`
	IdentificacionComprador     string          `xml:"identificacionComprador"`
	ContribuyenteEspecial       *string         `xml:"contribuyenteEspecial,omitempty"`
	ObligadoContabilidad        *string         `xml:"obligadoContabilidad,omitempty"`
	Rise                        *string         `xml:"rise,omitempty"`
	CodDocModificado            string          `xml:"codDocModificado"`
	NumDocModificado            string          `xml:"numDocModificado"`
	FechaEmisionDocSustento     string          `xml:"fechaEmisionDocSustento"`
	TotalSinImpuestos           string          `xml:"totalSinImpuestos"`
	ValorModificacion           string          `xml:"valorModificacion"`
	Moneda                      *string         `xml:"moneda,omitempty"`
	TotalConImpuestos           []totalImpuesto `xml:"totalConImpuestos>totalImpuesto"`
	Motivo                      string          `xml:"motivo"`
}

type detalleNotaCredito struct {
	CodigoInterno          *string                 `xml:"codigoInterno,omitempty"`
	CodigoAdicional        *string                 `xml:"codigoAdicional,omitempty"`
	Descripcion            string                  `xml:"descripcion"`
	UnidadMedida           *string                 `xml:"unidadMedida,omitempty"`
	Cantidad               string                  `xml:"cantidad"`
	PrecioUnitario         string                  `xml:"precioUnitario"`
	Descuento              string                  `xml:"descuento"`
	PrecioTotalSinImpuesto string                  `xml:"precioTotalSinImpuesto"`
	DetallesAdicionales    *detallesAdicionalesXML `xml:"detallesAdicionales,omitempty"`
	Impuestos              []impuesto              `xml:"impuestos>impuesto"`
}

// ── Nota de débito 1.0.0 ──────────────────────────────────────────────────────

type notaDebitoXML struct {
	XMLName        xml.Name       `xml:"notaDebito"`
	ID             string         `xml:"id,attr"`
	Version        string         `xml:"version,attr"`
	InfoTributaria infoTributaria `xml:"infoTributaria"`
	InfoNotaDebito infoNotaDebito `xml:"infoNotaDebito"`
	Motivos        []motivo       `xml:"motivos>motivo"`
	InfoAdicional  *infoAdicional `xml:"infoAdicional,omitempty"`
}

type infoNotaDebito struct {
	FechaEmision                string     `xml:"fechaEmision"`
	DirEstablecimiento          *string    `xml:"dirEstablecimiento,omitempty"`
	TipoIdentificacionComprador string     `xml:"tipoIdentificacionComprador"`
	RazonSocialComprador        string     `xml:"razonSocialComprador"`
	IdentificacionComprador     string     `xml:"identificacionComprador"`
	ContribuyenteEspecial       *string    `xml:"contribuyenteEspecial,omitempty"`
	ObligadoContabilidad        *string    `xml:"obligadoContabilidad,omitempty"`
	Rise                        *string    `xml:"rise,omitempty"`
	CodDocModificado            string     `xml:"codDocModificado"`
	NumDocModificado            string     `xml:"numDocModificado"`
	FechaEmisionDocSustento     string     `xml:"fechaEmisionDocSustento"`
	TotalSinImpuestos           string     `xml:"totalSinImpuestos"`
	Impuestos                   []impuesto `xml:"impuestos>impuesto"`
	ValorTotal                  string     `xml:"valorTotal"`
	Pagos                       *pagosXML  `xml:"pagos,omitempty"`
}

type motivo struct {
	Razon string `xml:"razon"`
	Valor string `xml:"valor"`
}

// ── Comprobante de retención 2.0.0 ────────────────────────────────────────────

type retencionXML struct {
	XMLName           xml.Name          `xml:"comprobanteRetencion"`
	ID                string            `xml:"id,attr"`
	Version           string            `xml:"version,attr"`
	InfoTributaria    infoTributaria    `xml:"infoTributaria"`
	InfoCompRetencion infoCompRetencion `xml:"infoCompRetencion"`
	DocsSustento      []docSustento     `xml:"docsSustento>docSustento"`
	InfoAdicional     *infoAdicional    `xml:"infoAdicional,omitempty"`
}

type infoCompRetencion struct {
	FechaEmision                     string  `xml:"fechaEmision"`
	DirEstablecimiento               *string `xml:"dirEstablecimiento,omitempty"`
	ContribuyenteEspecial            *string `xml:"contribuyenteEspecial,omitempty"`
	ObligadoContabilidad             *string `xml:"obligadoContabilidad,omitempty"`
	TipoIdentificacionSujetoRetenido string  `xml:"tipoIdentificacionSujetoRetenido"`
	TipoSujetoRetenido               *string `xml:"tipoSujetoRetenido,omitempty"`
	ParteRel                         string  `xml:"parteRel"`
	RazonSocialSujetoRetenido        string  `xml:"razonSocialSujetoRetenido"`
	IdentificacionSujetoRetenido     string  `xml:"identificacionSujetoRetenido"`
	PeriodoFiscal                    string  `xml:"periodoFiscal"`
}

type docSustento struct {
	CodSustento             string                `xml:"codSustento"`
	CodDocSustento          string                `xml:"codDocSustento"`
	NumDocSustento          string                `xml:"numDocSustento"`
	FechaEmisionDocSustento string                `xml:"fechaEmisionDocSustento"`
	FechaRegistroContable   *string               `xml:"fechaRegistroContable,omitempty"`
	NumAutDocSustento       *string               `xml:"numAutDocSustento,omitempty"`
	PagoLocExt              string                `xml:"pagoLocExt"`
	TipoRegi                *string               `xml:"tipoRegi,omitempty"`
	PaisEfecPago            *string               `xml:"paisEfecPago,omitempty"`
	AplicConvDobTrib        *string               `xml:"aplicConvDobTrib,omitempty"`
	PagExtSujRetNorLeg      *string               `xml:"pagExtSujRetNorLeg,omitempty"`
	TotalSinImpuestos       string                `xml:"totalSinImpuestos"`
	ImporteTotal            string                `xml:"importeTotal"`
	ImpuestosDocSustento    []impuestoDocSustento `xml:"impuestosDocSustento>impuestoDocSustento"`
	Retenciones             []retencion           `xml:"retenciones>retencion"`
	Pagos                   *pagosXML             `xml:"pagos,omitempty"`
}

type impuestoDocSustento struct {
	CodImpuestoDocSustento string `xml:"codImpuestoDocSustento"`
	CodigoPorcentaje       string `xml:"codigoPorcentaje"`
	BaseImponible          string `xml:"baseImponible"`
	Tarifa                 string `xml:"tarifa"`
	ValorImpuesto          string `xml:"valorImpuesto"`
}

type retencion struct {
	Codigo            string `xml:"codigo"`
	CodigoRetencion   string `xml:"codigoRetencion"`
	BaseImponible     string `xml:"baseImponible"`
	PorcentajeRetener string `xml:"porcentajeRetener"`
	ValorRetenido     string `xml:"valorRetenido"`
}

// ── Guía de remisión 1.1.0 ────────────────────────────────────────────────────

type guiaRemisionXML struct {
	XMLName          xml.Name         `xml:"guiaRemision"`
	ID               string           `xml:"id,attr"`
	Version          string           `xml:"version,attr"`
	InfoTributaria   infoTributaria   `xml:"infoTributaria"`
	InfoGuiaRemision infoGuiaRemision `xml:"infoGuiaRemision"`
	Destinatarios    []destinatario   `xml:"destinatarios>destinatario"`
	InfoAdicional    *infoAdicional   `xml:"infoAdicional,omitempty"`
}

type infoGuiaRemision struct {
	DirEstablecimiento              *string `xml:"dirEstablecimiento,omitempty"`
	DirPartida                      string  `xml:"dirPartida"`
	RazonSocialTransportista        string  `xml:"razonSocialTransportista"`
	TipoIdentificacionTransportista string  `xml:"tipoIdentificacionTransportista"`
	RucTransportista                string  `xml:"rucTransportista"`
	Rise                            *string `xml:"rise,omitempty"`
	ObligadoContabilidad            *string `xml:"obligadoContabilidad,omitempty"`
	ContribuyenteEspecial           *string `xml:"contribuyenteEspecial,omitempty"`
	FechaIniTransporte              string  `xml:"fechaIniTransporte"`
	FechaFinTransporte              string  `xml:"fechaFinTransporte"`
	Placa                           string  `xml:"placa"`
}

type destinatario struct {
	IdentificacionDestinatario string        `xml:"identificacionDestinatario"`
	RazonSocialDestinatario    string        `xml:"razonSocialDestinatario"`
	DirDestinatario            string        `xml:"dirDestinatario"`
	MotivoTraslado             string        `xml:"motivoTraslado"`
	DocAduaneroUnico           *string       `xml:"docAduaneroUnico,omitempty"`
	CodEstabDestino            *string       `xml:"codEstabDestino,omitempty"`
	Ruta                       *string       `xml:"ruta,omitempty"`
	CodDocSustento             *string       `xml:"codDocSustento,omitempty"`
	NumDocSustento             *string       `xml:"numDocSustento,omitempty"`
	NumAutDocSustento          *string       `xml:"numAutDocSustento,omitempty"`
	FechaEmisionDocSustento    *string       `xml:"fechaEmisionDocSustento,omitempty"`
	Detalles                   []detalleGuia `xml:"detalles>detalle"`
}

type detalleGuia struct {
	CodigoInterno       *string                 `xml:"codigoInterno,omitempty"`
	CodigoAdicional     *string                 `xml:"codigoAdicional,omitempty"`
	Descripcion         string                  `xml:"descripcion"`
	Cantidad            string                  `xml:"cantidad"`
	DetallesAdicionales *detallesAdicionalesXML `xml:"detallesAdicionales,omitempty"`
}
