package sri_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infrasri "github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

const testKey = sri.AccessKey("1501202401179214673900110010010000000011234567810")

const wsdlTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<wsdl:definitions xmlns:wsdl="http://schemas.xmlsoap.org/wsdl/" xmlns:soap="http://schemas.xmlsoap.org/wsdl/soap/">
  <wsdl:service name="Servicio">
    <wsdl:port name="Puerto" binding="tns:Binding">
      <soap:address location="%s"/>
    </wsdl:port>
  </wsdl:service>
</wsdl:definitions>`

const recepcionTemplate = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body><ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>%s</estado><comprobantes>%s</comprobantes></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

const comprobanteDevuelto = `<comprobante><claveAcceso>` + string(testKey) + `</claveAcceso><mensajes><mensaje>
<identificador>35</identificador><mensaje>ARCHIVO NO CUMPLE ESTRUCTURA XML</mensaje>
<informacionAdicional>Se encontró el elemento 'x' no esperado</informacionAdicional><tipo>ERROR</tipo>
</mensaje></mensajes></comprobante>`

const autorizacionTemplate = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body><ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante><claveAccesoConsultada>` + string(testKey) + `</claveAccesoConsultada>
<numeroComprobantes>%d</numeroComprobantes><autorizaciones>%s</autorizaciones></RespuestaAutorizacionComprobante>
</ns2:autorizacionComprobanteResponse></soap:Body></soap:Envelope>`

const autorizado = `<autorizacion><estado>AUTORIZADO</estado><numeroAutorizacion>` + string(testKey) + `</numeroAutorizacion>
<fechaAutorizacion>2024-01-15T10:05:12-05:00</fechaAutorizacion><ambiente>PRUEBAS</ambiente>
<comprobante><![CDATA[<factura id="comprobante"></factura>]]></comprobante><mensajes/></autorizacion>`

const noAutorizado = `<autorizacion><estado>NO AUTORIZADO</estado><fechaAutorizacion>2024-01-15T10:05:12-05:00</fechaAutorizacion>
<ambiente>PRUEBAS</ambiente><mensajes><mensaje><identificador>39</identificador><mensaje>FIRMA INVALIDA</mensaje><tipo>ERROR</tipo></mensaje></mensajes></autorizacion>`

const soapFault = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<soap:Fault><faultcode>soap:Server</faultcode><faultstring>Servicio no disponible</faultstring></soap:Fault>
</soap:Body></soap:Envelope>`

// fakeSRI simula los servicios de recepción y autorización.
type fakeSRI struct {
	server *httptest.Server

	wsdlCalls      atomic.Int32
	receptionCalls atomic.Int32
	authCalls      atomic.Int32

	wsdlDelay time.Duration

	mu            sync.Mutex
	reception     func() (int, string)
	authorization func() (int, string)
	lastBody      string
}

func newFakeSRI(t *testing.T) *fakeSRI {
	t.Helper()
	f := &fakeSRI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/recepcion", f.wsdl("/recepcion-ws"))
	mux.HandleFunc("/autorizacion", f.wsdl("/autorizacion-ws"))
	mux.HandleFunc("/recepcion-ws", func(w http.ResponseWriter, r *http.Request) {
		f.receptionCalls.Add(1)
		f.respond(w, r, f.reception)
	})
	mux.HandleFunc("/autorizacion-ws", func(w http.ResponseWriter, r *http.Request) {
		f.authCalls.Add(1)
		f.respond(w, r, f.authorization)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSRI) wsdl(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.wsdlCalls.Add(1)
		time.Sleep(f.wsdlDelay)
		fmt.Fprintf(w, wsdlTemplate, f.server.URL+path)
	}
}

func (f *fakeSRI) respond(w http.ResponseWriter, r *http.Request, h func() (int, string)) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.lastBody = string(body)
	f.mu.Unlock()
	status, payload := h()
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	io.WriteString(w, payload)
}

func (f *fakeSRI) endpoints() infrasri.Endpoints {
	return infrasri.Endpoints{
		Reception:     f.server.URL + "/recepcion?wsdl",
		Authorization: f.server.URL + "/autorizacion?wsdl",
	}
}

func (f *fakeSRI) client() *infrasri.SOAPClient {
	return infrasri.NewSOAPClient(
		infrasri.WithHTTPClient(f.server.Client()),
		infrasri.WithEndpoints(sri.EnvironmentTest, f.endpoints()),
	)
}

func fixed(status int, payload string) func() (int, string) {
	return func() (int, string) { return status, payload }
}

func TestSubmit_Recibida(t *testing.T) {
	f := newFakeSRI(t)
	f.reception = fixed(http.StatusOK, fmt.Sprintf(recepcionTemplate, "RECIBIDA", ""))

	out, err := f.client().Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	require.NoError(t, err)
	assert.Equal(t, sri.SubmissionAccepted, out.Status)
	assert.Empty(t, out.Messages)

	// El comprobante viaja en Base64 dentro de validarComprobante
	assert.Contains(t, f.lastBody, "validarComprobante")
	assert.Contains(t, f.lastBody, "<xml>PGZhY3R1cmEvPg==</xml>")
}

func TestSubmit_DevueltaConMensajes(t *testing.T) {
	f := newFakeSRI(t)
	f.reception = fixed(http.StatusOK, fmt.Sprintf(recepcionTemplate, "DEVUELTA", comprobanteDevuelto))

	out, err := f.client().Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	require.NoError(t, err)
	assert.Equal(t, sri.SubmissionRejected, out.Status)
	assert.Equal(t, testKey, out.AccessKey)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, sri.Message{
		Identifier:     "35",
		Message:        "ARCHIVO NO CUMPLE ESTRUCTURA XML",
		AdditionalInfo: "Se encontró el elemento 'x' no esperado",
		Type:           "ERROR",
	}, out.Messages[0])
}

func TestSubmit_EstadoDesconocido(t *testing.T) {
	f := newFakeSRI(t)
	f.reception = fixed(http.StatusOK, fmt.Sprintf(recepcionTemplate, "PROCESANDO", ""))

	_, err := f.client().Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	assert.ErrorIs(t, err, sri.ErrUnrecognizedStatus)
	assert.NotErrorIs(t, err, sri.ErrTransportFailure)
}

func TestSubmit_SOAPFault(t *testing.T) {
	f := newFakeSRI(t)
	f.reception = fixed(http.StatusInternalServerError, soapFault)

	_, err := f.client().Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	assert.ErrorIs(t, err, sri.ErrTransportFailure)
	assert.Contains(t, err.Error(), "Servicio no disponible")
}

func TestSubmit_RespuestaIlegible(t *testing.T) {
	f := newFakeSRI(t)
	f.reception = fixed(http.StatusBadGateway, "<html>bad gateway")

	_, err := f.client().Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	assert.ErrorIs(t, err, sri.ErrTransportFailure)
}

func TestSubmit_ServidorCaido(t *testing.T) {
	f := newFakeSRI(t)
	c := f.client()
	f.server.Close()

	_, err := c.Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	assert.ErrorIs(t, err, sri.ErrTransportFailure)
}

func TestCheckAuthorization_Estados(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status sri.AuthorizationStatus
	}{
		{"autorizado", fmt.Sprintf(autorizacionTemplate, 1, autorizado), sri.AuthorizationAuthorized},
		{"no autorizado", fmt.Sprintf(autorizacionTemplate, 1, noAutorizado), sri.AuthorizationDenied},
		{"sin autorizaciones", fmt.Sprintf(autorizacionTemplate, 0, ""), sri.AuthorizationPending},
		{"en proceso", fmt.Sprintf(autorizacionTemplate, 1, "<autorizacion><estado>EN PROCESO</estado></autorizacion>"), sri.AuthorizationPending},
		{"rechazada", fmt.Sprintf(autorizacionTemplate, 1, "<autorizacion><estado>RECHAZADA</estado></autorizacion>"), sri.AuthorizationDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeSRI(t)
			f.authorization = fixed(http.StatusOK, tc.body)

			out, err := f.client().CheckAuthorization(context.Background(), sri.EnvironmentTest, testKey)
			require.NoError(t, err)
			assert.Equal(t, tc.status, out.Status)
			assert.Equal(t, testKey, out.AccessKey)
		})
	}
}

func TestCheckAuthorization_DatosAutorizacion(t *testing.T) {
	f := newFakeSRI(t)
	f.authorization = fixed(http.StatusOK, fmt.Sprintf(autorizacionTemplate, 1, autorizado))

	out, err := f.client().CheckAuthorization(context.Background(), sri.EnvironmentTest, testKey)
	require.NoError(t, err)
	assert.Equal(t, string(testKey), out.AuthorizationNumber)
	assert.Equal(t, sri.EnvironmentTest, out.Environment)
	assert.Equal(t, `<factura id="comprobante"></factura>`, out.AuthorizedXML)
	assert.True(t, out.AuthorizationDate.Equal(time.Date(2024, 1, 15, 10, 5, 12, 0, sri.Location)))
	assert.Contains(t, f.lastBody, "<claveAccesoComprobante>"+string(testKey)+"</claveAccesoComprobante>")
}

func TestCheckAuthorization_ComprobanteAutorizadoGrande(t *testing.T) {
	big := `<factura id="comprobante">` + strings.Repeat("<detalle>x</detalle>", 150_000) + `</factura>`
	require.Greater(t, len(big), 2<<20)
	resp := fmt.Sprintf(autorizacionTemplate, 1, strings.Replace(autorizado, `<factura id="comprobante"></factura>`, big, 1))
	f := newFakeSRI(t)
	f.authorization = fixed(http.StatusOK, resp)

	out, err := f.client().CheckAuthorization(context.Background(), sri.EnvironmentTest, testKey)
	require.NoError(t, err)
	assert.Equal(t, sri.AuthorizationAuthorized, out.Status)
	assert.Equal(t, big, out.AuthorizedXML)
}

func TestCheckAuthorization_RespuestaExcedeElTope(t *testing.T) {
	resp := fmt.Sprintf(autorizacionTemplate, 1, autorizado)
	f := newFakeSRI(t)
	f.authorization = fixed(http.StatusOK, resp)
	client := func(limit int64) *infrasri.SOAPClient {
		return infrasri.NewSOAPClient(
			infrasri.WithHTTPClient(f.server.Client()),
			infrasri.WithEndpoints(sri.EnvironmentTest, f.endpoints()),
			infrasri.WithMaxResponseSize(limit),
		)
	}

	_, err := client(int64(len(resp))).CheckAuthorization(context.Background(), sri.EnvironmentTest, testKey)
	require.NoError(t, err, "una respuesta exactamente del tamaño del tope se acepta")

	_, err = client(int64(len(resp))-1).CheckAuthorization(context.Background(), sri.EnvironmentTest, testKey)
	require.ErrorIs(t, err, sri.ErrTransportFailure)
	assert.Contains(t, err.Error(), "excede")
}

func TestCheckAuthorization_MensajesNoAutorizado(t *testing.T) {
	f := newFakeSRI(t)
	f.authorization = fixed(http.StatusOK, fmt.Sprintf(autorizacionTemplate, 1, noAutorizado))

	out, err := f.client().CheckAuthorization(context.Background(), sri.EnvironmentTest, testKey)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "39", out.Messages[0].Identifier)
	assert.Equal(t, "FIRMA INVALIDA", out.Messages[0].Message)
}

func TestCheckAuthorization_EstadoDesconocido(t *testing.T) {
	f := newFakeSRI(t)
	f.authorization = fixed(http.StatusOK, fmt.Sprintf(autorizacionTemplate, 1, "<autorizacion><estado>ANULADO</estado></autorizacion>"))

	_, err := f.client().CheckAuthorization(context.Background(), sri.EnvironmentTest, testKey)
	assert.ErrorIs(t, err, sri.ErrUnrecognizedStatus)
}

func TestSession_SeReutilizaEntreLlamadas(t *testing.T) {
	f := newFakeSRI(t)
	f.reception = fixed(http.StatusOK, fmt.Sprintf(recepcionTemplate, "RECIBIDA", ""))
	c := f.client()

	for i := 0; i < 3; i++ {
		_, err := c.Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
		require.NoError(t, err)
	}
	// Un WSDL de recepción y uno de autorización
	assert.Equal(t, int32(2), f.wsdlCalls.Load())
	assert.Equal(t, int32(3), f.receptionCalls.Load())
}

func TestSession_ConcurrenciaCreaUnaSola(t *testing.T) {
	f := newFakeSRI(t)
	f.wsdlDelay = 200 * time.Millisecond
	f.authorization = fixed(http.StatusOK, fmt.Sprintf(autorizacionTemplate, 0, ""))
	c := f.client()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.CheckAuthorization(context.Background(), sri.EnvironmentTest, testKey)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	// Una sola descarga de cada WSDL para las diez llamadas
	assert.Equal(t, int32(2), f.wsdlCalls.Load())
	assert.Equal(t, int32(10), f.authCalls.Load())

	// Ya establecida, las siguientes llamadas no descargan WSDL
	before := f.wsdlCalls.Load()
	_, err := c.CheckAuthorization(context.Background(), sri.EnvironmentTest, testKey)
	require.NoError(t, err)
	assert.Equal(t, before, f.wsdlCalls.Load())
}

func TestSession_FallaDeTransporteLaDescarta(t *testing.T) {
	f := newFakeSRI(t)
	var fail atomic.Bool
	f.reception = func() (int, string) {
		if fail.Load() {
			return http.StatusInternalServerError, soapFault
		}
		return http.StatusOK, fmt.Sprintf(recepcionTemplate, "RECIBIDA", "")
	}
	c := f.client()

	_, err := c.Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	require.NoError(t, err)
	require.Equal(t, int32(2), f.wsdlCalls.Load())

	fail.Store(true)
	_, err = c.Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	require.ErrorIs(t, err, sri.ErrTransportFailure)

	fail.Store(false)
	_, err = c.Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	require.NoError(t, err)
	assert.Equal(t, int32(4), f.wsdlCalls.Load())
}

func TestSetEndpoints_InvalidaSesion(t *testing.T) {
	first := newFakeSRI(t)
	first.reception = fixed(http.StatusOK, fmt.Sprintf(recepcionTemplate, "RECIBIDA", ""))
	second := newFakeSRI(t)
	second.reception = fixed(http.StatusOK, fmt.Sprintf(recepcionTemplate, "DEVUELTA", comprobanteDevuelto))

	c := first.client()
	out, err := c.Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	require.NoError(t, err)
	assert.Equal(t, sri.SubmissionAccepted, out.Status)

	c.SetEndpoints(sri.EnvironmentTest, second.endpoints())
	out, err = c.Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	require.NoError(t, err)
	assert.Equal(t, sri.SubmissionRejected, out.Status)
	assert.Equal(t, int32(1), first.receptionCalls.Load())
	assert.Equal(t, int32(1), second.receptionCalls.Load())
}

func TestSession_WSDLSinAddressUsaLaURL(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			io.WriteString(w, `<definitions/>`)
			return
		}
		calls.Add(1)
		assert.Equal(t, "/ws", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		fmt.Fprintf(w, recepcionTemplate, "RECIBIDA", "")
	}))
	t.Cleanup(srv.Close)

	c := infrasri.NewSOAPClient(
		infrasri.WithHTTPClient(srv.Client()),
		infrasri.WithEndpoints(sri.EnvironmentTest, infrasri.Endpoints{Reception: srv.URL + "/ws?wsdl", Authorization: srv.URL + "/ws?wsdl"}),
	)
	_, err := c.Submit(context.Background(), sri.EnvironmentTest, []byte("<factura/>"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPing_AmbienteInvalido(t *testing.T) {
	err := infrasri.NewSOAPClient().Ping(context.Background(), sri.Environment("9"))
	assert.ErrorIs(t, err, sri.ErrInvalidField)
}

func TestDefaultEndpoints(t *testing.T) {
	e := infrasri.DefaultEndpoints()
	assert.True(t, strings.Contains(e[sri.EnvironmentTest].Reception, "celcer.sri.gob.ec"))
	assert.True(t, strings.Contains(e[sri.EnvironmentProduction].Authorization, "cel.sri.gob.ec"))
	assert.False(t, strings.Contains(e[sri.EnvironmentProduction].Authorization, "celcer"))
}
