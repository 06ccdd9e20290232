// Package sri contiene validaciones de dominio de los comprobantes electrónicos
// del SRI (Ecuador). Utiliza catálogos y reglas de pkg/sri.
package sri

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// ValidateDocument valida los campos obligatorios y la coherencia de totales.
// Los campos faltantes devuelven sri.ErrInvalidField; los totales que no
// cuadran devuelven sri.ErrInconsistentTotals con el detalle de cada diferencia.
func ValidateDocument(doc entity.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: comprobante nulo", sri.ErrInvalidField)
	}
	if err := validateRequired(doc); err != nil {
		return err
	}
	return ValidateTotals(doc)
}

// ValidateTotals comprueba que los impuestos por línea sumen los totales
// agrupados por (código, código de porcentaje) y que los subtotales de las
// líneas sumen totalSinImpuestos.
func ValidateTotals(doc entity.Document) error {
	var errs []error
	switch d := doc.(type) {
	case *entity.Invoice:
		errs = append(errs, checkLines(d.Lines, d.SubtotalBeforeTax)...)
		errs = append(errs, checkBuckets(lineBuckets(d.Lines), totalBuckets(d.TaxTotals))...)
		expected := d.SubtotalBeforeTax.Add(sumTaxTotals(d.TaxTotals))
		if d.Tip != nil {
			expected = expected.Add(*d.Tip)
		}
		errs = append(errs, checkEqual("importeTotal", d.Total, expected)...)
	case *entity.CreditNote:
		errs = append(errs, checkLines(d.Lines, d.SubtotalBeforeTax)...)
		errs = append(errs, checkBuckets(lineBuckets(d.Lines), totalBuckets(d.TaxTotals))...)
		expected := d.SubtotalBeforeTax.Add(sumTaxTotals(d.TaxTotals))
		errs = append(errs, checkEqual("valorModificacion", d.ModificationValue, expected)...)
	case *entity.DebitNote:
		var reasons decimal.Decimal
		for _, r := range d.Reasons {
			reasons = reasons.Add(r.Value)
		}
		errs = append(errs, checkEqual("totalSinImpuestos (suma de motivos)", d.SubtotalBeforeTax, reasons)...)
		var base, taxes decimal.Decimal
		for _, t := range d.Taxes {
			base = base.Add(t.TaxableBase)
			taxes = taxes.Add(t.Amount)
		}
		errs = append(errs, checkEqual("impuestos.baseImponible", d.SubtotalBeforeTax, base)...)
		errs = append(errs, checkEqual("valorTotal", d.Total, d.SubtotalBeforeTax.Add(taxes))...)
	case *entity.Waybill:
		// sin montos
	case *entity.WithholdingReceipt:
		for i, sd := range d.SupportDocs {
			var taxes decimal.Decimal
			for _, t := range sd.Taxes {
				taxes = taxes.Add(t.Amount)
			}
			field := fmt.Sprintf("docSustento[%d].importeTotal", i+1)
			errs = append(errs, checkEqual(field, sd.Total, sd.SubtotalBeforeTax.Add(taxes))...)
		}
	default:
		return fmt.Errorf("%w: tipo de comprobante %T no soportado", sri.ErrInvalidField, doc)
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{sri.ErrInconsistentTotals}, errs...)...)
	}
	return nil
}

type bucket struct {
	base   decimal.Decimal
	amount decimal.Decimal
}

func bucketKey(code, percentageCode string) string {
	return code + "/" + percentageCode
}

func lineBuckets(lines []entity.LineItem) map[string]bucket {
	out := make(map[string]bucket)
	for _, l := range lines {
		for _, t := range l.Taxes {
			k := bucketKey(t.Code, t.PercentageCode)
			b := out[k]
			b.base = b.base.Add(t.TaxableBase)
			b.amount = b.amount.Add(t.Amount)
			out[k] = b
		}
	}
	return out
}

func totalBuckets(totals []entity.TaxTotal) map[string]bucket {
	out := make(map[string]bucket)
	for _, t := range totals {
		k := bucketKey(t.Code, t.PercentageCode)
		b := out[k]
		b.base = b.base.Add(t.TaxableBase)
		b.amount = b.amount.Add(t.Amount)
		out[k] = b
	}
	return out
}

func checkBuckets(lines, totals map[string]bucket) []error {
	keys := make(map[string]struct{}, len(lines)+len(totals))
	for k := range lines {
		keys[k] = struct{}{}
	}
	for k := range totals {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var errs []error
	for _, k := range sorted {
		l, inLines := lines[k]
		t, inTotals := totals[k]
		switch {
		case !inTotals:
			errs = append(errs, fmt.Errorf("impuesto %s presente en las líneas pero no en totalConImpuestos", k))
		case !inLines:
			errs = append(errs, fmt.Errorf("impuesto %s presente en totalConImpuestos pero no en las líneas", k))
		default:
			errs = append(errs, checkEqual("totalImpuesto "+k+" baseImponible", t.base, l.base)...)
			errs = append(errs, checkEqual("totalImpuesto "+k+" valor", t.amount, l.amount)...)
		}
	}
	return errs
}

func checkLines(lines []entity.LineItem, subtotal decimal.Decimal) []error {
	var sum decimal.Decimal
	for _, l := range lines {
		sum = sum.Add(l.Subtotal)
	}
	return checkEqual("totalSinImpuestos", subtotal, sum)
}

func sumTaxTotals(totals []entity.TaxTotal) decimal.Decimal {
	var sum decimal.Decimal
	for _, t := range totals {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// checkEqual compara a dos decimales, que es la precisión con la que viajan los montos.
func checkEqual(field string, declared, computed decimal.Decimal) []error {
	if declared.Round(2).Equal(computed.Round(2)) {
		return nil
	}
	return []error{fmt.Errorf("%s (%s) no coincide con el valor calculado (%s)",
		field, declared.StringFixed(2), computed.StringFixed(2))}
}

func validateRequired(doc entity.Document) error {
	h := doc.DocumentHeader()
	var missing []string
	req := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	req("ruc", h.Issuer.RUC)
	req("razonSocial", h.Issuer.LegalName)
	req("dirMatriz", h.Issuer.HeadOfficeAddress)
	req("estab", h.Series.Establishment)
	req("ptoEmi", h.Series.EmissionPoint)
	req("secuencial", h.Series.Sequential)
	if h.IssueDate.IsZero() {
		missing = append(missing, "fechaEmision")
	}

	switch d := doc.(type) {
	case *entity.Invoice:
		missing = append(missing, buyerMissing(d.Buyer)...)
		if len(d.Lines) == 0 {
			missing = append(missing, "detalles")
		}
		for i, l := range d.Lines {
			req(fmt.Sprintf("detalle[%d].descripcion", i+1), l.Description)
		}
	case *entity.CreditNote:
		missing = append(missing, buyerMissing(d.Buyer)...)
		req("codDocModificado", string(d.Modified.Kind))
		req("numDocModificado", d.Modified.Number)
		req("motivo", d.Reason)
		if len(d.Lines) == 0 {
			missing = append(missing, "detalles")
		}
	case *entity.DebitNote:
		missing = append(missing, buyerMissing(d.Buyer)...)
		req("codDocModificado", string(d.Modified.Kind))
		req("numDocModificado", d.Modified.Number)
		if len(d.Reasons) == 0 {
			missing = append(missing, "motivos")
		}
	case *entity.Waybill:
		missing = append(missing, waybillMissing(d)...)
	case *entity.WithholdingReceipt:
		req("tipoIdentificacionSujetoRetenido", d.Subject.IDType)
		req("razonSocialSujetoRetenido", d.Subject.Name)
		req("identificacionSujetoRetenido", d.Subject.ID)
		if d.FiscalPeriod.IsZero() {
			missing = append(missing, "periodoFiscal")
		}
		if len(d.SupportDocs) == 0 {
			missing = append(missing, "docsSustento")
		}
		for i, sd := range d.SupportDocs {
			if len(sd.Withholdings) == 0 {
				missing = append(missing, fmt.Sprintf("docSustento[%d].retenciones", i+1))
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: campos obligatorios vacíos: %s", sri.ErrInvalidField, strings.Join(missing, ", "))
	}
	if wb, ok := doc.(*entity.Waybill); ok && wb.TransportEnd.Before(wb.TransportStart) {
		return fmt.Errorf("%w: fechaFinTransporte anterior a fechaIniTransporte", sri.ErrInvalidField)
	}
	if h.EmissionType != "" && h.EmissionType != sri.EmissionTypeNormal {
		return fmt.Errorf("%w: tipoEmision %q no permitido", sri.ErrInvalidField, h.EmissionType)
	}
	return nil
}

func buyerMissing(b entity.Buyer) []string {
	var missing []string
	if strings.TrimSpace(b.IDType) == "" {
		missing = append(missing, "tipoIdentificacionComprador")
	} else if !sri.ValidIdentificationTypes[b.IDType] {
		missing = append(missing, "tipoIdentificacionComprador (código "+b.IDType+" desconocido)")
	}
	if strings.TrimSpace(b.ID) == "" {
		missing = append(missing, "identificacionComprador")
	}
	if strings.TrimSpace(b.Name) == "" {
		missing = append(missing, "razonSocialComprador")
	}
	return missing
}

func waybillMissing(d *entity.Waybill) []string {
	var missing []string
	req := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	req("dirPartida", d.DepartureAddress)
	req("razonSocialTransportista", d.Carrier.Name)
	req("rucTransportista", d.Carrier.ID)
	req("placa", d.Carrier.Plate)
	if strings.TrimSpace(d.Carrier.IDType) == "" {
		missing = append(missing, "tipoIdentificacionTransportista")
	} else if !sri.ValidIdentificationTypes[d.Carrier.IDType] {
		missing = append(missing, "tipoIdentificacionTransportista (código "+d.Carrier.IDType+" desconocido)")
	}
	if d.TransportStart.IsZero() {
		missing = append(missing, "fechaIniTransporte")
	}
	if d.TransportEnd.IsZero() {
		missing = append(missing, "fechaFinTransporte")
	}
	if len(d.Recipients) == 0 {
		missing = append(missing, "destinatarios")
	}
	for i, r := range d.Recipients {
		prefix := fmt.Sprintf("destinatario[%d].", i+1)
		req(prefix+"identificacionDestinatario", r.ID)
		req(prefix+"razonSocialDestinatario", r.Name)
		req(prefix+"dirDestinatario", r.Address)
		req(prefix+"motivoTraslado", r.TransferReason)
		if r.Support != nil {
			req(prefix+"codDocSustento", string(r.Support.Kind))
			req(prefix+"numDocSustento", r.Support.Number)
		}
		if len(r.Items) == 0 {
			missing = append(missing, prefix+"detalles")
		}
		for j, it := range r.Items {
			req(fmt.Sprintf("%sdetalle[%d].descripcion", prefix, j+1), it.Description)
		}
	}
	return missing
}
