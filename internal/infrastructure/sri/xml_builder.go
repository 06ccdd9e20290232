// Package sri implementa la generación del XML de los comprobantes electrónicos
// del SRI (Ecuador) y el cliente de los servicios web de recepción y autorización.
package sri

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	domainsri "github.com/jhoicas/sri-comprobantes/internal/domain/sri"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// ComprobanteID valor del atributo id del elemento raíz; la firma lo referencia como #comprobante.
const ComprobanteID = "comprobante"

// Versiones de esquema por tipo de comprobante.
const (
	VersionFactura     = "1.1.0"
	VersionNotaCredito = "1.1.0"
	VersionNotaDebito  = "1.0.0"
	VersionGuia        = "1.1.0"
	VersionRetencion   = "2.0.0"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// XMLBuilderService construye el XML del comprobante (sin firma).
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build valida el comprobante y genera su XML. La clave de acceso debe haberse
// generado con los mismos datos del comprobante y el mismo ambiente.
func (s *XMLBuilderService) Build(doc entity.Document, key sri.AccessKey, env sri.Environment) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: comprobante nulo", sri.ErrInvalidField)
	}
	if err := domainsri.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if err := checkAccessKey(doc, key, env); err != nil {
		return nil, err
	}

	it := buildInfoTributaria(doc, key, env)
	var payload any
	switch d := doc.(type) {
	case *entity.Invoice:
		payload = buildFactura(d, it)
	case *entity.CreditNote:
		payload = buildNotaCredito(d, it)
	case *entity.DebitNote:
		payload = buildNotaDebito(d, it)
	case *entity.Waybill:
		payload = buildGuiaRemision(d, it)
	case *entity.WithholdingReceipt:
		payload = buildRetencion(d, it)
	default:
		return nil, fmt.Errorf("%w: tipo de comprobante %T no soportado", sri.ErrInvalidField, doc)
	}

	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("sri: serializar %s: %w", doc.Kind().Name(), err)
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// checkAccessKey verifica que la clave corresponda al comprobante.
func checkAccessKey(doc entity.Document, key sri.AccessKey, env sri.Environment) error {
	f, err := sri.ParseAccessKey(string(key))
	if err != nil {
		return err
	}
	h := doc.DocumentHeader()
	switch {
	case f.Kind != doc.Kind():
		return fmt.Errorf("%w: claveAcceso: codDoc %s no corresponde a %s", sri.ErrInvalidField, f.Kind, doc.Kind())
	case f.Environment != env:
		return fmt.Errorf("%w: claveAcceso: ambiente %s no corresponde a %s", sri.ErrInvalidField, f.Environment, env)
	case f.IssuerRUC != h.Issuer.RUC:
		return fmt.Errorf("%w: claveAcceso: RUC %s no corresponde al emisor %s", sri.ErrInvalidField, f.IssuerRUC, h.Issuer.RUC)
	case formatDate(f.IssueDate) != formatDate(h.IssueDate):
		return fmt.Errorf("%w: claveAcceso: fecha %s no corresponde a fechaEmision %s", sri.ErrInvalidField, formatDate(f.IssueDate), formatDate(h.IssueDate))
	case sri.FormatDocumentNumber(f.Establishment, f.EmissionPoint, f.Sequential) != h.Series.Number():
		return fmt.Errorf("%w: claveAcceso: serie no corresponde a %s", sri.ErrInvalidField, h.Series.Number())
	}
	return nil
}

func buildInfoTributaria(doc entity.Document, key sri.AccessKey, env sri.Environment) infoTributaria {
	h := doc.DocumentHeader()
	emissionType := h.EmissionType
	if emissionType == "" {
		emissionType = sri.EmissionTypeNormal
	}
	return infoTributaria{
		Ambiente:           string(env),
		TipoEmision:        emissionType,
		RazonSocial:        cleanText(h.Issuer.LegalName),
		NombreComercial:    cleanTextPtr(h.Issuer.TradeName),
		RUC:                h.Issuer.RUC,
		ClaveAcceso:        string(key),
		CodDoc:             string(doc.Kind()),
		Estab:              leftPad(h.Series.Establishment, 3),
		PtoEmi:             leftPad(h.Series.EmissionPoint, 3),
		Secuencial:         leftPad(h.Series.Sequential, 9),
		DirMatriz:          cleanText(h.Issuer.HeadOfficeAddress),
		AgenteRetencion:    h.Issuer.WithholdingAgent,
		ContribuyenteRimpe: cleanTextPtr(h.Issuer.RimpeTaxpayer),
	}
}

func buildFactura(d *entity.Invoice, it infoTributaria) *facturaXML {
	out := &facturaXML{
		ID:             ComprobanteID,
		Version:        VersionFactura,
		InfoTributaria: it,
		InfoFactura: infoFactura{
			FechaEmision:                formatDate(d.IssueDate),
			DirEstablecimiento:          cleanTextPtr(d.Issuer.EstablishmentAddress),
			ContribuyenteEspecial:       d.Issuer.SpecialTaxpayer,
			ObligadoContabilidad:        yesNoPtr(d.Issuer.KeepsAccounting),
			TipoIdentificacionComprador: d.Buyer.IDType,
			GuiaRemision:                d.RemissionGuide,
			RazonSocialComprador:        cleanText(d.Buyer.Name),
			IdentificacionComprador:     d.Buyer.ID,
			DireccionComprador:          cleanTextPtr(d.Buyer.Address),
			TotalSinImpuestos:           money(d.SubtotalBeforeTax),
			TotalDescuento:              money(d.TotalDiscount),
			TotalConImpuestos:           buildTotalImpuestos(d.TaxTotals),
			Propina:                     moneyPtr(d.Tip),
			ImporteTotal:                money(d.Total),
			Moneda:                      d.Currency,
			Pagos:                       buildPagos(d.Payments),
		},
		InfoAdicional: buildInfoAdicional(d.AdditionalFields),
	}
	for _, l := range d.Lines {
		out.Detalles = append(out.Detalles, detalleFactura{
			CodigoPrincipal:        cleanTextPtr(l.MainCode),
			CodigoAuxiliar:         cleanTextPtr(l.AuxCode),
			Descripcion:            cleanText(l.Description),
			UnidadMedida:           cleanTextPtr(l.Unit),
			Cantidad:               quantity(l.Quantity),
			PrecioUnitario:         quantity(l.UnitPrice),
			Descuento:              money(l.Discount),
			PrecioTotalSinImpuesto: money(l.Subtotal),
			DetallesAdicionales:    buildDetAdicionales(l.Details),
			Impuestos:              buildImpuestos(l.Taxes),
		})
	}
	return out
}

func buildNotaCredito(d *entity.CreditNote, it infoTributaria) *notaCreditoXML {
	out := &notaCreditoXML{
		ID:             ComprobanteID,
		Version:        VersionNotaCredito,
		InfoTributaria: it,
		InfoNotaCredito: infoNotaCredito{
			FechaEmision:                formatDate(d.IssueDate),
			DirEstablecimiento:          cleanTextPtr(d.Issuer.EstablishmentAddress),
			TipoIdentificacionComprador: d.Buyer.IDType,
			RazonSocialComprador:        cleanText(d.Buyer.Name),
			IdentificacionComprador:     d.Buyer.ID,
			ContribuyenteEspecial:       d.Issuer.SpecialTaxpayer,
			ObligadoContabilidad:        yesNoPtr(d.Issuer.KeepsAccounting),
			Rise:                        d.Rise,
			CodDocModificado:            string(d.Modified.Kind),
			NumDocModificado:            d.Modified.Number,
			FechaEmisionDocSustento:     formatDate(d.Modified.IssueDate),
			TotalSinImpuestos:           money(d.SubtotalBeforeTax),
			ValorModificacion:           money(d.ModificationValue),
			Moneda:                      d.Currency,
			TotalConImpuestos:           buildTotalImpuestos(d.TaxTotals),
			Motivo:                      cleanText(d.Reason),
		},
		InfoAdicional: buildInfoAdicional(d.AdditionalFields),
	}
	for _, l := range d.Lines {
		out.Detalles = append(out.Detalles, detalleNotaCredito{
			CodigoInterno:          cleanTextPtr(l.MainCode),
			CodigoAdicional:        cleanTextPtr(l.AuxCode),
			Descripcion:            cleanText(l.Description),
			UnidadMedida:           cleanTextPtr(l.Unit),
			Cantidad:               quantity(l.Quantity),
			PrecioUnitario:         quantity(l.UnitPrice),
			Descuento:              money(l.Discount),
			PrecioTotalSinImpuesto: money(l.Subtotal),
			DetallesAdicionales:    buildDetAdicionales(l.Details),
			Impuestos:              buildImpuestos(l.Taxes),
		})
	}
	return out
}

func buildNotaDebito(d *entity.DebitNote, it infoTributaria) *notaDebitoXML {
	out := &notaDebitoXML{
		ID:             ComprobanteID,
		Version:        VersionNotaDebito,
		InfoTributaria: it,
		InfoNotaDebito: infoNotaDebito{
			FechaEmision:                formatDate(d.IssueDate),
			DirEstablecimiento:          cleanTextPtr(d.Issuer.EstablishmentAddress),
			TipoIdentificacionComprador: d.Buyer.IDType,
			RazonSocialComprador:        cleanText(d.Buyer.Name),
			IdentificacionComprador:     d.Buyer.ID,
			ContribuyenteEspecial:       d.Issuer.SpecialTaxpayer,
			ObligadoContabilidad:        yesNoPtr(d.Issuer.KeepsAccounting),
			Rise:                        d.Rise,
			CodDocModificado:            string(d.Modified.Kind),
			NumDocModificado:            d.Modified.Number,
			FechaEmisionDocSustento:     formatDate(d.Modified.IssueDate),
			TotalSinImpuestos:           money(d.SubtotalBeforeTax),
			Impuestos:                   buildImpuestos(d.Taxes),
			ValorTotal:                  money(d.Total),
			Pagos:                       buildPagos(d.Payments),
		},
		InfoAdicional: buildInfoAdicional(d.AdditionalFields),
	}
	for _, r := range d.Reasons {
		out.Motivos = append(out.Motivos, motivo{Razon: cleanText(r.Reason), Valor: money(r.Value)})
	}
	return out
}

func buildRetencion(d *entity.WithholdingReceipt, it infoTributaria) *retencionXML {
	out := &retencionXML{
		ID:             ComprobanteID,
		Version:        VersionRetencion,
		InfoTributaria: it,
		InfoCompRetencion: infoCompRetencion{
			FechaEmision:                     formatDate(d.IssueDate),
			DirEstablecimiento:               cleanTextPtr(d.Issuer.EstablishmentAddress),
			ContribuyenteEspecial:            d.Issuer.SpecialTaxpayer,
			ObligadoContabilidad:             yesNoPtr(d.Issuer.KeepsAccounting),
			TipoIdentificacionSujetoRetenido: d.Subject.IDType,
			TipoSujetoRetenido:               d.Subject.SubjectType,
			ParteRel:                         yesNo(d.Subject.RelatedParty),
			RazonSocialSujetoRetenido:        cleanText(d.Subject.Name),
			IdentificacionSujetoRetenido:     d.Subject.ID,
			PeriodoFiscal:                    d.FiscalPeriod.In(sri.Location).Format("01/2006"),
		},
		InfoAdicional: buildInfoAdicional(d.AdditionalFields),
	}
	for _, sd := range d.SupportDocs {
		ds := docSustento{
			CodSustento:             sd.SupportCode,
			CodDocSustento:          string(sd.Kind),
			NumDocSustento:          strings.ReplaceAll(sd.Number, "-", ""),
			FechaEmisionDocSustento: formatDate(sd.IssueDate),
			NumAutDocSustento:       sd.AuthorizationNumber,
			PagoLocExt:              sd.PaymentLocation,
			TipoRegi:                sd.TaxRegime,
			PaisEfecPago:            sd.PaymentCountry,
			AplicConvDobTrib:        yesNoPtr(sd.DoubleTaxation),
			PagExtSujRetNorLeg:      yesNoPtr(sd.SubjectToRetention),
			TotalSinImpuestos:       money(sd.SubtotalBeforeTax),
			ImporteTotal:            money(sd.Total),
			Pagos:                   buildPagos(sd.Payments),
		}
		if sd.RecordDate != nil {
			rd := formatDate(*sd.RecordDate)
			ds.FechaRegistroContable = &rd
		}
		for _, t := range sd.Taxes {
			ds.ImpuestosDocSustento = append(ds.ImpuestosDocSustento, impuestoDocSustento{
				CodImpuestoDocSustento: t.Code,
				CodigoPorcentaje:       t.PercentageCode,
				BaseImponible:          money(t.TaxableBase),
				Tarifa:                 rate(t.Rate),
				ValorImpuesto:          money(t.Amount),
			})
		}
		for _, w := range sd.Withholdings {
			ds.Retenciones = append(ds.Retenciones, retencion{
				Codigo:            w.Code,
				CodigoRetencion:   w.WithholdingCode,
				BaseImponible:     money(w.TaxableBase),
				PorcentajeRetener: rate(w.Percentage),
				ValorRetenido:     money(w.Amount),
			})
		}
		out.DocsSustento = append(out.DocsSustento, ds)
	}
	return out
}

func buildGuiaRemision(d *entity.Waybill, it infoTributaria) *guiaRemisionXML {
	out := &guiaRemisionXML{
		ID:             ComprobanteID,
		Version:        VersionGuia,
		InfoTributaria: it,
		InfoGuiaRemision: infoGuiaRemision{
			DirEstablecimiento:              cleanTextPtr(d.Issuer.EstablishmentAddress),
			DirPartida:                      cleanText(d.DepartureAddress),
			RazonSocialTransportista:        cleanText(d.Carrier.Name),
			TipoIdentificacionTransportista: d.Carrier.IDType,
			RucTransportista:                d.Carrier.ID,
			Rise:                            d.Rise,
			ObligadoContabilidad:            yesNoPtr(d.Issuer.KeepsAccounting),
			ContribuyenteEspecial:           d.Issuer.SpecialTaxpayer,
			FechaIniTransporte:              formatDate(d.TransportStart),
			FechaFinTransporte:              formatDate(d.TransportEnd),
			Placa:                           cleanText(d.Carrier.Plate),
		},
		InfoAdicional: buildInfoAdicional(d.AdditionalFields),
	}
	for _, r := range d.Recipients {
		dest := destinatario{
			IdentificacionDestinatario: r.ID,
			RazonSocialDestinatario:    cleanText(r.Name),
			DirDestinatario:            cleanText(r.Address),
			MotivoTraslado:             cleanText(r.TransferReason),
			DocAduaneroUnico:           cleanTextPtr(r.CustomsDocument),
			CodEstabDestino:            r.DestinationEstablishment,
			Ruta:                       cleanTextPtr(r.Route),
		}
		if sup := r.Support; sup != nil {
			kind := string(sup.Kind)
			number := sup.Number
			dest.CodDocSustento = &kind
			dest.NumDocSustento = &number
			dest.NumAutDocSustento = sup.AuthorizationNumber
			if sup.IssueDate != nil {
				date := formatDate(*sup.IssueDate)
				dest.FechaEmisionDocSustento = &date
			}
		}
		for _, item := range r.Items {
			dest.Detalles = append(dest.Detalles, detalleGuia{
				CodigoInterno:       cleanTextPtr(item.InternalCode),
				CodigoAdicional:     cleanTextPtr(item.AdditionalCode),
				Descripcion:         cleanText(item.Description),
				Cantidad:            quantity(item.Quantity),
				DetallesAdicionales: buildDetAdicionales(item.Details),
			})
		}
		out.Destinatarios = append(out.Destinatarios, dest)
	}
	return out
}

func buildTotalImpuestos(totals []entity.TaxTotal) []totalImpuesto {
	out := make([]totalImpuesto, 0, len(totals))
	for _, t := range totals {
		ti := totalImpuesto{
			Codigo:             t.Code,
			CodigoPorcentaje:   t.PercentageCode,
			DescuentoAdicional: moneyPtr(t.AdditionalDiscount),
			BaseImponible:      money(t.TaxableBase),
			Valor:              money(t.Amount),
		}
		if t.Rate != nil {
			r := rate(*t.Rate)
			ti.Tarifa = &r
		}
		out = append(out, ti)
	}
	return out
}

func buildImpuestos(taxes []entity.LineTax) []impuesto {
	out := make([]impuesto, 0, len(taxes))
	for _, t := range taxes {
		out = append(out, impuesto{
			Codigo:           t.Code,
			CodigoPorcentaje: t.PercentageCode,
			Tarifa:           rate(t.Rate),
			BaseImponible:    money(t.TaxableBase),
			Valor:            money(t.Amount),
		})
	}
	return out
}

func buildPagos(payments []entity.Payment) *pagosXML {
	if len(payments) == 0 {
		return nil
	}
	out := make([]pago, 0, len(payments))
	for _, p := range payments {
		pg := pago{
			FormaPago:    p.Method,
			Total:        money(p.Total),
			UnidadTiempo: p.TimeUnit,
		}
		if p.Term != nil {
			t := p.Term.String()
			pg.Plazo = &t
		}
		out = append(out, pg)
	}
	return &pagosXML{Pagos: out}
}

func buildDetAdicionales(attrs []entity.DetailAttribute) *detallesAdicionalesXML {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]detAdicional, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, detAdicional{Nombre: cleanText(a.Name), Valor: cleanText(a.Value)})
	}
	return &detallesAdicionalesXML{Detalles: out}
}

func buildInfoAdicional(fields []entity.AdditionalField) *infoAdicional {
	if len(fields) == 0 {
		return nil
	}
	ia := &infoAdicional{}
	for _, f := range fields {
		ia.Campos = append(ia.Campos, campoAdicional{Nombre: cleanText(f.Name), Valor: cleanText(f.Value)})
	}
	return ia
}

// ── Formatos ──────────────────────────────────────────────────────────────────

// money montos monetarios: siempre 2 decimales.
func money(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

// quantity cantidad y precio unitario: 6 decimales (esquema 1.1.0).
func quantity(d decimal.Decimal) string {
	return d.Round(6).StringFixed(6)
}

// rate porcentajes (tarifa, porcentajeRetener) sin ceros de relleno.
func rate(d decimal.Decimal) string {
	return d.Round(2).String()
}

func formatDate(t time.Time) string {
	return t.In(sri.Location).Format("02/01/2006")
}

func yesNo(b bool) string {
	if b {
		return "SI"
	}
	return "NO"
}

func yesNoPtr(b *bool) *string {
	if b == nil {
		return nil
	}
	s := yesNo(*b)
	return &s
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// cleanText normaliza a NFC y quita caracteres de control, que no son válidos en el XML del SRI.
func cleanText(s string) string {
	t := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cc)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(out)
}

func cleanTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	c := cleanText(*s)
	return &c
}
