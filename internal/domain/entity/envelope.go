package entity

import (
	"encoding/json"
	"fmt"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// envelope forma JSON de un comprobante: {"tipo": "01", "comprobante": {...}}.
type envelope struct {
	Kind     sri.DocumentKind `json:"tipo"`
	Document json.RawMessage  `json:"comprobante"`
}

// DecodeDocument decodifica un comprobante JSON usando "tipo" como discriminador.
func DecodeDocument(data []byte) (Document, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("comprobante: JSON inválido: %w", err)
	}
	if len(env.Document) == 0 {
		return nil, fmt.Errorf("comprobante: falta el objeto \"comprobante\"")
	}

	var doc Document
	switch env.Kind {
	case sri.KindInvoice:
		doc = &Invoice{}
	case sri.KindCreditNote:
		doc = &CreditNote{}
	case sri.KindDebitNote:
		doc = &DebitNote{}
	case sri.KindWaybill:
		doc = &Waybill{}
	case sri.KindWithholding:
		doc = &WithholdingReceipt{}
	default:
		return nil, fmt.Errorf("comprobante: tipo %q no soportado (01, 04, 05, 06 o 07)", env.Kind)
	}
	if err := json.Unmarshal(env.Document, doc); err != nil {
		return nil, fmt.Errorf("comprobante %s: %w", env.Kind, err)
	}
	return doc, nil
}

// EncodeDocument serializa el comprobante con su discriminador.
func EncodeDocument(doc Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(envelope{Kind: doc.Kind(), Document: raw}, "", "  ")
}
