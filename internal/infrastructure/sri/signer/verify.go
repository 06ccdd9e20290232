package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// VerifyResult datos del firmante extraídos de una firma válida.
type VerifyResult struct {
	Subject      string
	Issuer       string
	SerialNumber string
	SigningTime  string
}

// Verify comprueba una firma XAdES-BES generada por Sign: los tres digests de
// SignedInfo y el valor RSA-SHA1 contra el certificado incluido en KeyInfo.
func Verify(signedXML []byte) (VerifyResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return VerifyResult{}, fmt.Errorf("%w: parsear XML: %v", sri.ErrSignatureComputation, err)
	}
	root := doc.Root()
	if root == nil {
		return VerifyResult{}, fmt.Errorf("%w: documento sin raíz", sri.ErrSignatureComputation)
	}
	sigs := doc.FindElements("//Signature")
	if len(sigs) != 1 {
		return VerifyResult{}, fmt.Errorf("%w: se esperaba una firma, hay %d", sri.ErrSignatureComputation, len(sigs))
	}
	sig := sigs[0]
	signedInfo := sig.FindElement("./SignedInfo")
	sigValue := sig.FindElement("./SignatureValue")
	certEl := sig.FindElement("./KeyInfo/X509Data/X509Certificate")
	if signedInfo == nil || sigValue == nil || certEl == nil {
		return VerifyResult{}, fmt.Errorf("%w: firma incompleta", sri.ErrSignatureComputation)
	}

	certDER, err := base64.StdEncoding.DecodeString(strings.TrimSpace(certEl.Text()))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: certificado en Base64 inválido: %v", sri.ErrCertificate, err)
	}
	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: parsear certificado: %v", sri.ErrCertificate, err)
	}
	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return VerifyResult{}, fmt.Errorf("%w: la llave pública no es RSA", sri.ErrCertificate)
	}

	canon := dsig.MakeC14N10RecCanonicalizer()
	for _, ref := range signedInfo.SelectElements("Reference") {
		uri := ref.SelectAttrValue("URI", "")
		want := ""
		if dv := ref.FindElement("./DigestValue"); dv != nil {
			want = strings.TrimSpace(dv.Text())
		}
		got, err := referenceDigest(doc, canon, uri)
		if err != nil {
			return VerifyResult{}, err
		}
		if got != want {
			return VerifyResult{}, fmt.Errorf("%w: digest de %s no coincide", sri.ErrSignatureComputation, uri)
		}
	}

	canonicalSignedInfo, err := canon.Canonicalize(signedInfo)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: canonicalizar SignedInfo: %v", sri.ErrSignatureComputation, err)
	}
	rawSig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigValue.Text()))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: SignatureValue inválido: %v", sri.ErrSignatureComputation, err)
	}
	h := sha1.Sum(canonicalSignedInfo)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, h[:], rawSig); err != nil {
		return VerifyResult{}, fmt.Errorf("%w: SignatureValue no válido: %v", sri.ErrSignatureComputation, err)
	}

	res := VerifyResult{
		Subject:      leaf.Subject.String(),
		Issuer:       leaf.Issuer.String(),
		SerialNumber: leaf.SerialNumber.String(),
	}
	if st := sig.FindElement(".//SigningTime"); st != nil {
		res.SigningTime = st.Text()
	}
	return res, nil
}

// referenceDigest calcula el SHA-1 del nodo apuntado por uri. Para el
// comprobante se aplica la transformación enveloped-signature.
func referenceDigest(doc *etree.Document, canon dsig.Canonicalizer, uri string) (string, error) {
	id := strings.TrimPrefix(uri, "#")
	var target *etree.Element
	if id == ComprobanteElementID {
		root := doc.Root().Copy()
		for _, s := range root.SelectElements("Signature") {
			root.RemoveChild(s)
		}
		target = root
	} else {
		target = doc.FindElement("//*[@Id='" + id + "']")
	}
	if target == nil {
		return "", fmt.Errorf("%w: no se encontró el nodo %s", sri.ErrSignatureComputation, uri)
	}
	canonical, err := canon.Canonicalize(target)
	if err != nil {
		return "", fmt.Errorf("%w: canonicalizar %s: %v", sri.ErrSignatureComputation, uri, err)
	}
	sum := sha1.Sum(canonical)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}
