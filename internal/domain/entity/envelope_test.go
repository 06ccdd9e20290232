package entity_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

const facturaJSON = `{
  "tipo": "01",
  "comprobante": {
    "emisor": {"ruc": "1792146739001", "razonSocial": "COMERCIAL PRUEBAS S.A.", "dirMatriz": "Av. Amazonas N34-120", "obligadoContabilidad": true},
    "serie": {"estab": "001", "ptoEmi": "002", "secuencial": "15"},
    "fechaEmision": "2024-01-15T10:00:00-05:00",
    "comprador": {"tipoIdentificacion": "05", "identificacion": "1710034065", "razonSocial": "JUAN PEREZ"},
    "totalSinImpuestos": "100.00",
    "totalDescuento": 0,
    "totalConImpuestos": [{"codigo": "2", "codigoPorcentaje": "4", "baseImponible": "100", "valor": "15"}],
    "importeTotal": "115.00",
    "detalles": [{
      "descripcion": "Servicio",
      "cantidad": "1", "precioUnitario": "100", "descuento": "0", "precioTotalSinImpuesto": "100",
      "impuestos": [{"codigo": "2", "codigoPorcentaje": "4", "tarifa": "15", "baseImponible": "100", "valor": "15"}]
    }]
  }
}`

func TestDecodeDocument_Factura(t *testing.T) {
	doc, err := entity.DecodeDocument([]byte(facturaJSON))
	require.NoError(t, err)
	require.Equal(t, sri.KindInvoice, doc.Kind())

	inv, ok := doc.(*entity.Invoice)
	require.True(t, ok)
	assert.Equal(t, "1792146739001", inv.Issuer.RUC)
	assert.Equal(t, "001-002-000000015", inv.Series.Number())
	require.NotNil(t, inv.Issuer.KeepsAccounting)
	assert.True(t, *inv.Issuer.KeepsAccounting)
	assert.Nil(t, inv.Issuer.TradeName)
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(115)))
	require.Len(t, inv.Lines, 1)
	assert.True(t, inv.Lines[0].Taxes[0].Rate.Equal(decimal.NewFromInt(15)))
}

const guiaJSON = `{
  "tipo": "06",
  "comprobante": {
    "emisor": {"ruc": "1792146739001", "razonSocial": "COMERCIAL PRUEBAS S.A.", "dirMatriz": "Av. Amazonas N34-120"},
    "serie": {"estab": "001", "ptoEmi": "002", "secuencial": "7"},
    "fechaEmision": "2024-01-15T10:00:00-05:00",
    "dirPartida": "Bodega Norte",
    "transportista": {"tipoIdentificacionTransportista": "05", "rucTransportista": "1710034065", "razonSocialTransportista": "PEDRO CHOFER", "placa": "PBA-1234"},
    "fechaIniTransporte": "2024-01-15T00:00:00-05:00",
    "fechaFinTransporte": "2024-01-16T00:00:00-05:00",
    "destinatarios": [{
      "identificacionDestinatario": "0992877878001",
      "razonSocialDestinatario": "CLIENTE GUAYAQUIL S.A.",
      "dirDestinatario": "Av. 9 de Octubre 100",
      "motivoTraslado": "Venta",
      "docSustento": {"codDocSustento": "01", "numDocSustento": "001-002-000000015"},
      "detalles": [{"descripcion": "Cajas de papel", "cantidad": "12"}]
    }]
  }
}`

func TestDecodeDocument_GuiaRemision(t *testing.T) {
	doc, err := entity.DecodeDocument([]byte(guiaJSON))
	require.NoError(t, err)
	require.Equal(t, sri.KindWaybill, doc.Kind())

	wb, ok := doc.(*entity.Waybill)
	require.True(t, ok)
	assert.Equal(t, "001-002-000000007", wb.Series.Number())
	assert.Equal(t, "PBA-1234", wb.Carrier.Plate)
	require.Len(t, wb.Recipients, 1)
	require.NotNil(t, wb.Recipients[0].Support)
	assert.Equal(t, sri.KindInvoice, wb.Recipients[0].Support.Kind)
	require.Len(t, wb.Recipients[0].Items, 1)
	assert.True(t, wb.Recipients[0].Items[0].Quantity.Equal(decimal.NewFromInt(12)))
}

func TestDecodeDocument_TipoNoSoportado(t *testing.T) {
	_, err := entity.DecodeDocument([]byte(`{"tipo": "03", "comprobante": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no soportado")
}

func TestEncodeDocument_IdaYVuelta(t *testing.T) {
	doc, err := entity.DecodeDocument([]byte(facturaJSON))
	require.NoError(t, err)

	raw, err := entity.EncodeDocument(doc)
	require.NoError(t, err)

	again, err := entity.DecodeDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, doc.DocumentHeader().Series, again.DocumentHeader().Series)
	assert.True(t, doc.(*entity.Invoice).Total.Equal(again.(*entity.Invoice).Total))
}
