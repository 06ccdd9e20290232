package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// Carrier transportista que traslada la mercadería.
type Carrier struct {
	IDType string `json:"tipoIdentificacionTransportista"`
	ID     string `json:"rucTransportista"`
	Name   string `json:"razonSocialTransportista"`
	Plate  string `json:"placa"`
}

// WaybillSupport comprobante de venta que sustenta el traslado a un destinatario.
type WaybillSupport struct {
	Kind                sri.DocumentKind `json:"codDocSustento"`
	Number              string           `json:"numDocSustento"` // 001-001-000000001
	AuthorizationNumber *string          `json:"numAutDocSustento,omitempty"`
	IssueDate           *time.Time       `json:"fechaEmisionDocSustento,omitempty"`
}

// WaybillItem bien trasladado (destinatario/detalles/detalle).
type WaybillItem struct {
	InternalCode   *string           `json:"codigoInterno,omitempty"`
	AdditionalCode *string           `json:"codigoAdicional,omitempty"`
	Description    string            `json:"descripcion"`
	Quantity       decimal.Decimal   `json:"cantidad"`
	Details        []DetailAttribute `json:"detallesAdicionales,omitempty"`
}

// Recipient destinatario de la guía con los bienes que recibe.
type Recipient struct {
	ID                       string          `json:"identificacionDestinatario"`
	Name                     string          `json:"razonSocialDestinatario"`
	Address                  string          `json:"dirDestinatario"`
	TransferReason           string          `json:"motivoTraslado"`
	CustomsDocument          *string         `json:"docAduaneroUnico,omitempty"`
	DestinationEstablishment *string         `json:"codEstabDestino,omitempty"`
	Route                    *string         `json:"ruta,omitempty"`
	Support                  *WaybillSupport `json:"docSustento,omitempty"`
	Items                    []WaybillItem   `json:"detalles"`
}

// Waybill guía de remisión (codDoc 06, esquema 1.1.0). No lleva montos.
type Waybill struct {
	Header
	DepartureAddress string      `json:"dirPartida"`
	Carrier          Carrier     `json:"transportista"`
	Rise             *string     `json:"rise,omitempty"`
	TransportStart   time.Time   `json:"fechaIniTransporte"`
	TransportEnd     time.Time   `json:"fechaFinTransporte"`
	Recipients       []Recipient `json:"destinatarios"`
}

func (*Waybill) Kind() sri.DocumentKind { return sri.KindWaybill }
