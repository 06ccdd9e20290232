// Package entitytest construye comprobantes de ejemplo coherentes para las pruebas.
package entitytest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// IssueDate fecha fija de emisión usada por todos los ejemplos.
var IssueDate = time.Date(2024, 1, 15, 10, 0, 0, 0, sri.Location)

func str(s string) *string { return &s }

func boolean(b bool) *bool { return &b }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// Header cabecera con emisor de pruebas y secuencial 1.
func Header() entity.Header {
	return entity.Header{
		Issuer: entity.Issuer{
			RUC:                  "1792146739001",
			LegalName:            "COMERCIAL PRUEBAS S.A.",
			TradeName:            str("PRUEBAS & CIA"),
			HeadOfficeAddress:    "Av. Amazonas N34-120 y Av. Atahualpa",
			EstablishmentAddress: str("Av. Amazonas N34-120"),
			KeepsAccounting:      boolean(true),
		},
		Series: entity.Series{
			Establishment: "001",
			EmissionPoint: "001",
			Sequential:    "000000001",
		},
		IssueDate:    IssueDate,
		EmissionType: sri.EmissionTypeNormal,
		AdditionalFields: []entity.AdditionalField{
			{Name: "Email", Value: "cliente@example.com"},
		},
	}
}

// Buyer comprador con cédula.
func Buyer() entity.Buyer {
	return entity.Buyer{
		IDType:  sri.IdentificationCedula,
		ID:      "1710034065",
		Name:    "JUAN PÉREZ",
		Address: str("Quito"),
	}
}

func lines() []entity.LineItem {
	return []entity.LineItem{
		{
			MainCode:    str("P001"),
			Description: "Cuaderno universitario",
			Quantity:    dec("2"),
			UnitPrice:   dec("10.50"),
			Discount:    dec("0"),
			Subtotal:    dec("21.00"),
			Taxes: []entity.LineTax{
				{Code: sri.TaxIVA, PercentageCode: sri.IVARate15, Rate: dec("15"), TaxableBase: dec("21.00"), Amount: dec("3.15")},
			},
		},
		{
			MainCode:    str("P002"),
			Description: "Libro de texto",
			Quantity:    dec("1"),
			UnitPrice:   dec("50"),
			Discount:    dec("0"),
			Subtotal:    dec("50.00"),
			Details:     []entity.DetailAttribute{{Name: "ISBN", Value: "978-9942-00-000-0"}},
			Taxes: []entity.LineTax{
				{Code: sri.TaxIVA, PercentageCode: sri.IVARate0, Rate: dec("0"), TaxableBase: dec("50.00"), Amount: dec("0")},
			},
		},
	}
}

func taxTotals() []entity.TaxTotal {
	return []entity.TaxTotal{
		{Code: sri.TaxIVA, PercentageCode: sri.IVARate15, TaxableBase: dec("21.00"), Amount: dec("3.15")},
		{Code: sri.TaxIVA, PercentageCode: sri.IVARate0, TaxableBase: dec("50.00"), Amount: dec("0")},
	}
}

// Invoice factura de 71.00 + IVA 3.15 = 74.15.
func Invoice() *entity.Invoice {
	return &entity.Invoice{
		Header:            Header(),
		Buyer:             Buyer(),
		SubtotalBeforeTax: dec("71.00"),
		TotalDiscount:     dec("0"),
		TaxTotals:         taxTotals(),
		Tip:               decPtr("0"),
		Total:             dec("74.15"),
		Currency:          str("DOLAR"),
		Payments: []entity.Payment{
			{Method: sri.PaymentFinancialSystem, Total: dec("74.15"), Term: decPtr("30"), TimeUnit: str("dias")},
		},
		Lines: lines(),
	}
}

// CreditNote nota de crédito que anula la factura de ejemplo.
func CreditNote() *entity.CreditNote {
	return &entity.CreditNote{
		Header: Header(),
		Buyer:  Buyer(),
		Modified: entity.ModifiedDocument{
			Kind:      sri.KindInvoice,
			Number:    "001-001-000000001",
			IssueDate: IssueDate,
		},
		SubtotalBeforeTax: dec("71.00"),
		ModificationValue: dec("74.15"),
		Currency:          str("DOLAR"),
		TaxTotals:         taxTotals(),
		Reason:            "Devolución de mercadería",
		Lines:             lines(),
	}
}

// DebitNote nota de débito por intereses de mora.
func DebitNote() *entity.DebitNote {
	return &entity.DebitNote{
		Header: Header(),
		Buyer:  Buyer(),
		Modified: entity.ModifiedDocument{
			Kind:      sri.KindInvoice,
			Number:    "001-001-000000001",
			IssueDate: IssueDate,
		},
		SubtotalBeforeTax: dec("10.00"),
		Taxes: []entity.LineTax{
			{Code: sri.TaxIVA, PercentageCode: sri.IVARate15, Rate: dec("15"), TaxableBase: dec("10.00"), Amount: dec("1.50")},
		},
		Total: dec("11.50"),
		Payments: []entity.Payment{
			{Method: sri.PaymentCash, Total: dec("11.50")},
		},
		Reasons: []entity.DebitNoteReason{
			{Reason: "Interés por mora", Value: dec("10.00")},
		},
	}
}

// WithholdingReceipt retención de renta e IVA sobre una factura de 100 + 15.
func WithholdingReceipt() *entity.WithholdingReceipt {
	return &entity.WithholdingReceipt{
		Header: Header(),
		Subject: entity.WithholdingSubject{
			IDType:       sri.IdentificationRUC,
			RelatedParty: false,
			Name:         "PROVEEDOR DEL ECUADOR CIA. LTDA.",
			ID:           "0992877878001",
		},
		FiscalPeriod: IssueDate,
		SupportDocs: []entity.SupportDocument{
			{
				SupportCode:         "01",
				Kind:                sri.KindInvoice,
				Number:              "002-001-000000456",
				IssueDate:           IssueDate.AddDate(0, 0, -2),
				AuthorizationNumber: str("1301202401099287787800120020010000004561234567811"),
				PaymentLocation:     sri.PaymentLocal,
				SubtotalBeforeTax:   dec("100.00"),
				Total:               dec("115.00"),
				Taxes: []entity.SupportTax{
					{Code: sri.TaxIVA, PercentageCode: sri.IVARate15, TaxableBase: dec("100.00"), Rate: dec("15"), Amount: dec("15.00")},
				},
				Withholdings: []entity.Withholding{
					{Code: sri.WithholdingIncome, WithholdingCode: "303", TaxableBase: dec("100.00"), Percentage: dec("10"), Amount: dec("10.00")},
					{Code: sri.WithholdingIVA, WithholdingCode: "725", TaxableBase: dec("15.00"), Percentage: dec("30"), Amount: dec("4.50")},
				},
				Payments: []entity.Payment{
					{Method: sri.PaymentFinancialSystem, Total: dec("115.00")},
				},
			},
		},
	}
}

// Waybill guía de remisión con un destinatario y la factura que sustenta el traslado.
func Waybill() *entity.Waybill {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, sri.Location)
	return &entity.Waybill{
		Header:           Header(),
		DepartureAddress: "Bodega Norte, Panamericana Km 5",
		Carrier: entity.Carrier{
			IDType: sri.IdentificationCedula,
			ID:     "1710034065",
			Name:   "PEDRO CHÓFER",
			Plate:  "PBA-1234",
		},
		TransportStart: start,
		TransportEnd:   start.AddDate(0, 0, 1),
		Recipients: []entity.Recipient{
			{
				ID:             "0992877878001",
				Name:           "CLIENTE GUAYAQUIL S.A.",
				Address:        "Av. 9 de Octubre 100",
				TransferReason: "Venta",
				Route:          str("Quito - Guayaquil"),
				Support: &entity.WaybillSupport{
					Kind:                sri.KindInvoice,
					Number:              "001-001-000000015",
					AuthorizationNumber: str("1501202401179214673900110010010000000151234567819"),
					IssueDate:           &IssueDate,
				},
				Items: []entity.WaybillItem{
					{InternalCode: str("PAP-A4"), Description: "Resma papel A4", Quantity: dec("12")},
					{
						Description: "Tóner negro",
						Quantity:    dec("2.5"),
						Details:     []entity.DetailAttribute{{Name: "Lote", Value: "T-2024-01"}},
					},
				},
			},
		},
	}
}
