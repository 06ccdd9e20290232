package sri

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

const (
	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	nsRecepcion    = "http://ec.gob.sri.ws.recepcion"
	nsAutorizacion = "http://ec.gob.sri.ws.autorizacion"

	// DefaultMaxResponseSize tope de lectura de una respuesta. La autorización
	// trae el comprobante completo, que con muchos detalles pasa de 1 MiB.
	DefaultMaxResponseSize = 16 << 20

	// DefaultHTTPTimeout el SRI puede tardar varios segundos en responder.
	DefaultHTTPTimeout = 60 * time.Second
)

// ── Implementación SOAP ────────────────────────────────────────────────────────

// SOAPClient implementa Transport contra los servicios offline del SRI.
// Mantiene una sesión por ambiente que se crea al primer uso descargando los
// WSDL de recepción y autorización; de ellos toma la dirección real del servicio.
type SOAPClient struct {
	httpClient  *http.Client
	maxResponse int64

	mu         sync.RWMutex
	endpoints  map[sri.Environment]Endpoints
	sessions   map[sri.Environment]*session
	generation map[sri.Environment]uint64
	group      singleflight.Group
}

type session struct {
	receptionURL     string
	authorizationURL string
}

// ClientOption configura el cliente SOAP.
type ClientOption func(*SOAPClient)

// WithHTTPClient reemplaza el cliente HTTP (por ejemplo en pruebas).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(s *SOAPClient) { s.httpClient = c }
}

// WithTimeout fija el timeout de cada llamada HTTP.
func WithTimeout(d time.Duration) ClientOption {
	return func(s *SOAPClient) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

// WithMaxResponseSize fija el tamaño máximo aceptado de una respuesta.
func WithMaxResponseSize(n int64) ClientOption {
	return func(s *SOAPClient) {
		if n > 0 {
			s.maxResponse = n
		}
	}
}

// WithEndpoints reemplaza las URLs de un ambiente.
func WithEndpoints(env sri.Environment, e Endpoints) ClientOption {
	return func(s *SOAPClient) { s.endpoints[env] = e }
}

// NewSOAPClient construye el cliente con las URLs oficiales y un transporte
// HTTP instrumentado con OpenTelemetry.
func NewSOAPClient(opts ...ClientOption) *SOAPClient {
	c := &SOAPClient{
		httpClient: &http.Client{
			Timeout:   DefaultHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxResponse: DefaultMaxResponseSize,
		endpoints:   DefaultEndpoints(),
		sessions:    make(map[sri.Environment]*session),
		generation:  make(map[sri.Environment]uint64),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetEndpoints cambia las URLs de un ambiente y descarta su sesión.
func (c *SOAPClient) SetEndpoints(env sri.Environment, e Endpoints) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints[env] = e
	c.dropLocked(env)
}

func (c *SOAPClient) dropLocked(env sri.Environment) {
	delete(c.sessions, env)
	c.generation[env]++
}

// invalidate descarta la sesión s si sigue siendo la vigente del ambiente.
func (c *SOAPClient) invalidate(env sri.Environment, s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[env] == s {
		c.dropLocked(env)
	}
}

// Ping establece (o reutiliza) la sesión del ambiente.
func (c *SOAPClient) Ping(ctx context.Context, env sri.Environment) error {
	_, err := c.session(ctx, env)
	return err
}

// session devuelve la sesión del ambiente. Las llamadas concurrentes de un
// ambiente sin sesión comparten una sola descarga de los WSDL.
func (c *SOAPClient) session(ctx context.Context, env sri.Environment) (*session, error) {
	if !env.Valid() {
		return nil, fmt.Errorf("%w: ambiente %q", sri.ErrInvalidField, string(env))
	}
	c.mu.RLock()
	s, ok := c.sessions[env]
	endpoints := c.endpoints[env]
	gen := c.generation[env]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	key := string(env) + "#" + strconv.FormatUint(gen, 10)
	v, err, _ := c.group.Do(key, func() (any, error) {
		ns, err := c.establish(ctx, endpoints)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		// Si SetEndpoints cambió las URLs mientras tanto, no se guarda.
		if c.generation[env] == gen {
			c.sessions[env] = ns
		}
		return ns, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session), nil
}

func (c *SOAPClient) establish(ctx context.Context, e Endpoints) (*session, error) {
	if e.Reception == "" || e.Authorization == "" {
		return nil, fmt.Errorf("%w: URLs del ambiente sin configurar", sri.ErrTransportFailure)
	}
	reception, err := c.serviceAddress(ctx, e.Reception)
	if err != nil {
		return nil, err
	}
	authorization, err := c.serviceAddress(ctx, e.Authorization)
	if err != nil {
		return nil, err
	}
	return &session{receptionURL: reception, authorizationURL: authorization}, nil
}

// serviceAddress descarga el WSDL y devuelve la dirección de soap:address.
// Si el WSDL no la declara se usa la URL del WSDL sin el query.
func (c *SOAPClient) serviceAddress(ctx context.Context, wsdlURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wsdlURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: crear request WSDL: %v", sri.ErrTransportFailure, err)
	}
	raw, status, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: WSDL %s respondió HTTP %d", sri.ErrTransportFailure, wsdlURL, status)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return "", fmt.Errorf("%w: WSDL inválido en %s: %v", sri.ErrTransportFailure, wsdlURL, err)
	}
	if addr := doc.FindElement("//service/port/address[@location]"); addr != nil {
		return addr.SelectAttrValue("location", ""), nil
	}
	if i := strings.IndexByte(wsdlURL, '?'); i >= 0 {
		return wsdlURL[:i], nil
	}
	return wsdlURL, nil
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name   `xml:"soapenv:Envelope"`
	XmlnsS  string     `xml:"xmlns:soapenv,attr"`
	XmlnsEc string     `xml:"xmlns:ec,attr"`
	Header  soapHeader `xml:"soapenv:Header"`
	Body    soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct{}

type soapBody struct {
	Content any
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type validarComprobanteBody struct {
	XMLName xml.Name `xml:"ec:validarComprobante"`
	XML     string   `xml:"xml"` // comprobante firmado en Base64
}

type autorizacionComprobanteBody struct {
	XMLName     xml.Name `xml:"ec:autorizacionComprobante"`
	ClaveAcceso string   `xml:"claveAccesoComprobante"`
}

// ── Estructuras de respuesta SOAP ─────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Reception     *validarComprobanteResponse      `xml:"validarComprobanteResponse"`
	Authorization *autorizacionComprobanteResponse `xml:"autorizacionComprobanteResponse"`
	Fault         *soapFault                       `xml:"Fault"`
}

type validarComprobanteResponse struct {
	Respuesta respuestaRecepcion `xml:"RespuestaRecepcionComprobante"`
}

type respuestaRecepcion struct {
	Estado       string                 `xml:"estado"`
	Comprobantes []comprobanteRecepcion `xml:"comprobantes>comprobante"`
}

type comprobanteRecepcion struct {
	ClaveAcceso string       `xml:"claveAcceso"`
	Mensajes    []mensajeXML `xml:"mensajes>mensaje"`
}

type autorizacionComprobanteResponse struct {
	Respuesta respuestaAutorizacion `xml:"RespuestaAutorizacionComprobante"`
}

type respuestaAutorizacion struct {
	ClaveAccesoConsultada string            `xml:"claveAccesoConsultada"`
	NumeroComprobantes    string            `xml:"numeroComprobantes"`
	Autorizaciones        []autorizacionXML `xml:"autorizaciones>autorizacion"`
}

type autorizacionXML struct {
	Estado             string       `xml:"estado"`
	NumeroAutorizacion string       `xml:"numeroAutorizacion"`
	FechaAutorizacion  string       `xml:"fechaAutorizacion"`
	Ambiente           string       `xml:"ambiente"`
	Comprobante        string       `xml:"comprobante"`
	Mensajes           []mensajeXML `xml:"mensajes>mensaje"`
}

type mensajeXML struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Recepción ─────────────────────────────────────────────────────────────────

// Submit envía el comprobante firmado (validarComprobante).
func (c *SOAPClient) Submit(ctx context.Context, env sri.Environment, signedXML []byte) (*sri.SubmissionOutcome, error) {
	s, err := c.session(ctx, env)
	if err != nil {
		return nil, err
	}
	body := &validarComprobanteBody{XML: base64.StdEncoding.EncodeToString(signedXML)}
	resp, err := c.call(ctx, s.receptionURL, nsRecepcion, body)
	if err != nil {
		if errors.Is(err, sri.ErrTransportFailure) {
			c.invalidate(env, s)
		}
		return nil, err
	}
	if resp.Reception == nil {
		return nil, fmt.Errorf("%w: respuesta de recepción vacía o inesperada", sri.ErrTransportFailure)
	}
	return receptionOutcome(resp.Reception.Respuesta)
}

func receptionOutcome(r respuestaRecepcion) (*sri.SubmissionOutcome, error) {
	out := &sri.SubmissionOutcome{}
	for _, cmp := range r.Comprobantes {
		if out.AccessKey == "" {
			out.AccessKey = sri.AccessKey(strings.TrimSpace(cmp.ClaveAcceso))
		}
		out.Messages = append(out.Messages, messages(cmp.Mensajes)...)
	}
	switch strings.TrimSpace(r.Estado) {
	case sri.StatusReceived:
		out.Status = sri.SubmissionAccepted
	case sri.StatusReturned:
		out.Status = sri.SubmissionRejected
	default:
		return nil, fmt.Errorf("%w: recepción respondió %q", sri.ErrUnrecognizedStatus, r.Estado)
	}
	return out, nil
}

// ── Autorización ──────────────────────────────────────────────────────────────

// CheckAuthorization consulta la autorización (autorizacionComprobante).
func (c *SOAPClient) CheckAuthorization(ctx context.Context, env sri.Environment, key sri.AccessKey) (*sri.AuthorizationOutcome, error) {
	s, err := c.session(ctx, env)
	if err != nil {
		return nil, err
	}
	body := &autorizacionComprobanteBody{ClaveAcceso: key.String()}
	resp, err := c.call(ctx, s.authorizationURL, nsAutorizacion, body)
	if err != nil {
		if errors.Is(err, sri.ErrTransportFailure) {
			c.invalidate(env, s)
		}
		return nil, err
	}
	if resp.Authorization == nil {
		return nil, fmt.Errorf("%w: respuesta de autorización vacía o inesperada", sri.ErrTransportFailure)
	}
	return authorizationOutcome(key, resp.Authorization.Respuesta)
}

func authorizationOutcome(key sri.AccessKey, r respuestaAutorizacion) (*sri.AuthorizationOutcome, error) {
	out := &sri.AuthorizationOutcome{Status: sri.AuthorizationPending, AccessKey: key}
	if len(r.Autorizaciones) == 0 {
		return out, nil
	}
	// El SRI devuelve el historial; si alguno está autorizado ese es el vigente.
	a := r.Autorizaciones[0]
	for _, cand := range r.Autorizaciones {
		if strings.TrimSpace(cand.Estado) == sri.StatusAuthorized {
			a = cand
			break
		}
	}
	out.Messages = messages(a.Mensajes)
	switch strings.ReplaceAll(strings.TrimSpace(a.Estado), "_", " ") {
	case sri.StatusAuthorized:
		out.Status = sri.AuthorizationAuthorized
		out.AuthorizationNumber = strings.TrimSpace(a.NumeroAutorizacion)
		out.AuthorizationDate = parseAuthorizationDate(a.FechaAutorizacion)
		if env, err := sri.ParseEnvironment(a.Ambiente); err == nil {
			out.Environment = env
		}
		out.AuthorizedXML = strings.TrimSpace(a.Comprobante)
	case sri.StatusNotAuthorized, sri.StatusRejected:
		out.Status = sri.AuthorizationDenied
	case sri.StatusInProcess:
	default:
		return nil, fmt.Errorf("%w: autorización respondió %q", sri.ErrUnrecognizedStatus, a.Estado)
	}
	return out, nil
}

var authorizationDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"02/01/2006 15:04:05",
}

// parseAuthorizationDate interpreta fechaAutorizacion; sin zona se asume Ecuador.
func parseAuthorizationDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range authorizationDateLayouts {
		if t, err := time.ParseInLocation(layout, s, sri.Location); err == nil {
			return t
		}
	}
	return time.Time{}
}

func messages(in []mensajeXML) []sri.Message {
	if len(in) == 0 {
		return nil
	}
	out := make([]sri.Message, 0, len(in))
	for _, m := range in {
		out = append(out, sri.Message{
			Identifier:     strings.TrimSpace(m.Identificador),
			Message:        strings.TrimSpace(m.Mensaje),
			AdditionalInfo: strings.TrimSpace(m.InformacionAdicional),
			Type:           strings.TrimSpace(m.Tipo),
		})
	}
	return out
}

// ── HTTP ──────────────────────────────────────────────────────────────────────

// call envía el envelope SOAP y desempaqueta la respuesta. Cualquier falla de
// red, HTTP, SOAP Fault o respuesta ilegible es sri.ErrTransportFailure.
func (c *SOAPClient) call(ctx context.Context, url, ns string, content any) (*soapResponseBody, error) {
	envelope := soapEnvelope{XmlnsS: soapNS, XmlnsEc: ns, Body: soapBody{Content: content}}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: serializar envelope: %v", sri.ErrTransportFailure, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: crear request: %v", sri.ErrTransportFailure, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	raw, status, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(raw, &envResp); err != nil {
		return nil, fmt.Errorf("%w: respuesta SOAP ilegible (HTTP %d): %v", sri.ErrTransportFailure, status, err)
	}
	if f := envResp.Body.Fault; f != nil {
		return nil, fmt.Errorf("%w: SOAP Fault [%s]: %s", sri.ErrTransportFailure, f.FaultCode, f.FaultString)
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", sri.ErrTransportFailure, status)
	}
	return &envResp.Body, nil
}

func (c *SOAPClient) do(ctx context.Context, req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("%w: timeout o cancelación: %w", sri.ErrTransportFailure, ctx.Err())
		}
		return nil, 0, fmt.Errorf("%w: llamada HTTP fallida: %v", sri.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	// +1 para detectar una respuesta truncada
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: leer respuesta: %v", sri.ErrTransportFailure, err)
	}
	if int64(len(raw)) > c.maxResponse {
		return nil, resp.StatusCode, fmt.Errorf("%w: respuesta excede %d bytes", sri.ErrTransportFailure, c.maxResponse)
	}
	return raw, resp.StatusCode, nil
}
