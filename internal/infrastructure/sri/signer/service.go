// Servicio de firma digital XAdES-BES para comprobantes electrónicos SRI.
// Inserta <ds:Signature> como último hijo del elemento raíz del comprobante.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// SignedDocument XML firmado listo para enviar al servicio de recepción.
type SignedDocument struct {
	AccessKey      sri.AccessKey
	XML            []byte
	DocumentDigest string // SHA-1 Base64 del comprobante canonicalizado, sin firma
	SigningTime    time.Time
}

// Service implementa la firma XAdES-BES.
type Service struct {
	now func() time.Time
}

// Option configura el servicio.
type Option func(*Service)

// WithClock fija el reloj usado para la vigencia del certificado y SigningTime.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService crea el servicio.
func NewService(opts ...Option) *Service {
	s := &Service{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sign firma el comprobante y devuelve el XML con ds:Signature antes del cierre
// del elemento raíz. El certificado se verifica contra el reloj del servicio y
// queda liberado al terminar, con o sin error.
func (s *Service) Sign(xmlBytes []byte, cert *Certificate) (SignedDocument, error) {
	if cert == nil {
		return SignedDocument{}, fmt.Errorf("%w: certificado vacío", sri.ErrCertificate)
	}
	defer cert.Release()

	now := s.now().In(sri.Location).Truncate(time.Second)
	if err := CheckValidity(cert, now); err != nil {
		return SignedDocument{}, err
	}
	priv, leaf, err := cert.take()
	if err != nil {
		return SignedDocument{}, err
	}

	// 0) Documento: raíz con id="comprobante" y sin firma previa
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return SignedDocument{}, fmt.Errorf("%w: parsear XML: %v", sri.ErrSignatureComputation, err)
	}
	root := doc.Root()
	if root == nil {
		return SignedDocument{}, fmt.Errorf("%w: documento sin raíz", sri.ErrSignatureComputation)
	}
	if id := root.SelectAttrValue("id", ""); id != ComprobanteElementID {
		return SignedDocument{}, fmt.Errorf("%w: la raíz %s debe tener id=%q", sri.ErrSignatureComputation, root.Tag, ComprobanteElementID)
	}
	if len(doc.FindElements("//Signature")) > 0 {
		return SignedDocument{}, fmt.Errorf("%w: el documento ya está firmado", sri.ErrSignatureComputation)
	}
	var accessKey sri.AccessKey
	if el := root.FindElement("infoTributaria/claveAcceso"); el != nil {
		accessKey = sri.AccessKey(strings.TrimSpace(el.Text()))
	}

	// 1) Digest del documento (C14N inclusivo). Reference URI="#comprobante"
	canon := dsig.MakeC14N10RecCanonicalizer()
	docDigestB64, err := canonicalDigest(canon, root)
	if err != nil {
		return SignedDocument{}, err
	}
	docDigest, _ := base64.StdEncoding.DecodeString(docDigestB64)
	ids := newSignatureIDs(docDigest)

	// 2) Árbol ds:Signature completo como último hijo de la raíz. Los digests y
	// el SignatureValue se calculan sobre los nodos en su contexto final.
	certDigestB64, issuerName, serial := CertDigestAndIssuerSerial(leaf)
	modulus, exponent := rsaKeyValue(&priv.PublicKey)
	tree := buildSignature(ids, signatureData{
		signingTime:   now.Format(signingTimeLayout),
		certDigestB64: certDigestB64,
		issuerName:    issuerName,
		serial:        serial,
		certB64:       base64.StdEncoding.EncodeToString(leaf.Raw),
		modulus:       modulus,
		exponent:      exponent,
		docDigestB64:  docDigestB64,
	})
	root.AddChild(tree.signature)

	// 3) SignedProperties y KeyInfo
	propsDigestB64, err := canonicalDigest(canon, tree.signedProps)
	if err != nil {
		return SignedDocument{}, err
	}
	tree.propsDigest.SetText(propsDigestB64)
	keyInfoDigestB64, err := canonicalDigest(canon, tree.keyInfo)
	if err != nil {
		return SignedDocument{}, err
	}
	tree.keyInfoDigest.SetText(keyInfoDigestB64)

	// 4) SignatureValue: RSA-SHA1 sobre SignedInfo canonicalizado
	canonicalSignedInfo, err := canon.Canonicalize(tree.signedInfo)
	if err != nil {
		return SignedDocument{}, fmt.Errorf("%w: canonicalizar SignedInfo: %v", sri.ErrSignatureComputation, err)
	}
	signHash := sha1.Sum(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA1, signHash[:])
	if err != nil {
		return SignedDocument{}, fmt.Errorf("%w: firmar SignedInfo: %v", sri.ErrSignatureComputation, err)
	}
	tree.signatureValue.SetText(base64.StdEncoding.EncodeToString(signatureValue))

	// 5) Insertar antes del cierre de la raíz, sin reescribir el resto
	sigDoc := etree.NewDocument()
	sigDoc.SetRoot(tree.signature.Copy())
	signatureXML, err := sigDoc.WriteToString()
	if err != nil {
		return SignedDocument{}, fmt.Errorf("%w: serializar firma: %v", sri.ErrSignatureComputation, err)
	}
	signed, err := injectSignature(xmlBytes, root.FullTag(), signatureXML)
	if err != nil {
		return SignedDocument{}, err
	}
	if _, err := Verify(signed); err != nil {
		return SignedDocument{}, fmt.Errorf("la firma generada no verifica: %w", err)
	}
	return SignedDocument{
		AccessKey:      accessKey,
		XML:            signed,
		DocumentDigest: docDigestB64,
		SigningTime:    now,
	}, nil
}

// canonicalDigest SHA-1 Base64 de la forma canónica de el dentro de su
// documento: hereda los namespaces declarados por sus ancestros.
func canonicalDigest(canon dsig.Canonicalizer, el *etree.Element) (string, error) {
	canonical, err := canon.Canonicalize(el)
	if err != nil {
		return "", fmt.Errorf("%w: canonicalizar %s: %v", sri.ErrSignatureComputation, el.FullTag(), err)
	}
	sum := sha1.Sum(canonical)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// signatureIDs identificadores de los nodos de la firma, derivados del digest
// del documento para que la salida sea reproducible.
type signatureIDs struct {
	signature      string
	signedInfo     string
	signedProps    string
	signedPropsRef string
	signatureValue string
	certificate    string
	reference      string
	object         string
}

func newSignatureIDs(docDigest []byte) signatureIDs {
	n := strconv.FormatUint(uint64(binary.BigEndian.Uint32(docDigest[:4])%1_000_000), 10)
	sig := "Signature" + n
	return signatureIDs{
		signature:      sig,
		signedInfo:     sig + "-SignedInfo" + n,
		signedProps:    sig + "-SignedProperties" + n,
		signedPropsRef: "SignedPropertiesID" + n,
		signatureValue: "SignatureValue" + n,
		certificate:    "Certificate" + n,
		reference:      "Reference-ID-" + n,
		object:         sig + "-Object" + n,
	}
}

type signatureData struct {
	signingTime   string
	certDigestB64 string
	issuerName    string
	serial        string
	certB64       string
	modulus       string
	exponent      string
	docDigestB64  string
}

// signatureTree nodos de ds:Signature que se completan después de armarlo.
type signatureTree struct {
	signature      *etree.Element
	signedInfo     *etree.Element
	signatureValue *etree.Element
	keyInfo        *etree.Element
	signedProps    *etree.Element
	propsDigest    *etree.Element
	keyInfoDigest  *etree.Element
}

// buildSignature arma ds:Signature con los digests de SignedProperties y
// KeyInfo y el SignatureValue vacíos. Solo ds:Signature declara xmlns:ds y
// xmlns:etsi.
func buildSignature(ids signatureIDs, d signatureData) signatureTree {
	var t signatureTree
	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", NamespaceDS)
	sig.CreateAttr("xmlns:etsi", NamespaceETSI)
	sig.CreateAttr("Id", ids.signature)
	t.signature = sig

	// SignedInfo
	si := sig.CreateElement("ds:SignedInfo")
	si.CreateAttr("Id", ids.signedInfo)
	si.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", AlgC14N)
	si.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", AlgRSASHA1)
	t.signedInfo = si

	propsRef := si.CreateElement("ds:Reference")
	propsRef.CreateAttr("Id", ids.signedPropsRef)
	propsRef.CreateAttr("Type", TypeSignedProps)
	propsRef.CreateAttr("URI", "#"+ids.signedProps)
	t.propsDigest = addDigest(propsRef, "")

	certRef := si.CreateElement("ds:Reference")
	certRef.CreateAttr("URI", "#"+ids.certificate)
	t.keyInfoDigest = addDigest(certRef, "")

	docRef := si.CreateElement("ds:Reference")
	docRef.CreateAttr("Id", ids.reference)
	docRef.CreateAttr("URI", "#"+ComprobanteElementID)
	docRef.CreateElement("ds:Transforms").CreateElement("ds:Transform").CreateAttr("Algorithm", TransformEnveloped)
	addDigest(docRef, d.docDigestB64)

	// SignatureValue
	t.signatureValue = sig.CreateElement("ds:SignatureValue")
	t.signatureValue.CreateAttr("Id", ids.signatureValue)

	// KeyInfo
	ki := sig.CreateElement("ds:KeyInfo")
	ki.CreateAttr("Id", ids.certificate)
	ki.CreateElement("ds:X509Data").CreateElement("ds:X509Certificate").SetText(d.certB64)
	rsaKey := ki.CreateElement("ds:KeyValue").CreateElement("ds:RSAKeyValue")
	rsaKey.CreateElement("ds:Modulus").SetText(d.modulus)
	rsaKey.CreateElement("ds:Exponent").SetText(d.exponent)
	t.keyInfo = ki

	// Object / QualifyingProperties / SignedProperties
	obj := sig.CreateElement("ds:Object")
	obj.CreateAttr("Id", ids.object)
	qp := obj.CreateElement("etsi:QualifyingProperties")
	qp.CreateAttr("Target", "#"+ids.signature)
	sp := qp.CreateElement("etsi:SignedProperties")
	sp.CreateAttr("Id", ids.signedProps)
	t.signedProps = sp

	ssp := sp.CreateElement("etsi:SignedSignatureProperties")
	ssp.CreateElement("etsi:SigningTime").SetText(d.signingTime)
	cert := ssp.CreateElement("etsi:SigningCertificate").CreateElement("etsi:Cert")
	addDigest(cert.CreateElement("etsi:CertDigest"), d.certDigestB64)
	issuer := cert.CreateElement("etsi:IssuerSerial")
	issuer.CreateElement("ds:X509IssuerName").SetText(d.issuerName)
	issuer.CreateElement("ds:X509SerialNumber").SetText(d.serial)

	dof := sp.CreateElement("etsi:SignedDataObjectProperties").CreateElement("etsi:DataObjectFormat")
	dof.CreateAttr("ObjectReference", "#"+ids.reference)
	dof.CreateElement("etsi:Description").SetText(dataObjectDescription)
	dof.CreateElement("etsi:MimeType").SetText(dataObjectMimeType)
	return t
}

// addDigest agrega DigestMethod SHA-1 y DigestValue a parent.
func addDigest(parent *etree.Element, value string) *etree.Element {
	parent.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", AlgSHA1)
	dv := parent.CreateElement("ds:DigestValue")
	dv.SetText(value)
	return dv
}

// injectSignature inserta la firma justo antes del cierre de la raíz, sin
// tocar ningún otro byte del documento, y comprueba que el resultado tenga
// una sola firma como último hijo de la raíz.
func injectSignature(xmlBytes []byte, rootTag, signatureXML string) ([]byte, error) {
	closing := []byte("</" + rootTag + ">")
	idx := bytes.LastIndex(xmlBytes, closing)
	if idx < 0 {
		return nil, fmt.Errorf("%w: no se encontró el cierre de %s", sri.ErrSignatureComputation, rootTag)
	}
	out := make([]byte, 0, len(xmlBytes)+len(signatureXML))
	out = append(out, xmlBytes[:idx]...)
	out = append(out, signatureXML...)
	out = append(out, xmlBytes[idx:]...)

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(out); err != nil {
		return nil, fmt.Errorf("%w: el XML firmado no es válido: %v", sri.ErrSignatureComputation, err)
	}
	children := doc.Root().ChildElements()
	if len(doc.FindElements("//Signature")) != 1 || len(children) == 0 || children[len(children)-1].Tag != "Signature" {
		return nil, fmt.Errorf("%w: la firma no quedó como último hijo de %s", sri.ErrSignatureComputation, rootTag)
	}
	return out, nil
}
