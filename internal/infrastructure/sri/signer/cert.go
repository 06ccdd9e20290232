// Carga del certificado de firma desde .p12 (PKCS#12) o par PEM con llave PKCS#8 cifrada.

package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/youmark/pkcs8"
	"golang.org/x/crypto/pkcs12"

	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// Certificate manejador opaco del certificado de firma y su llave privada RSA.
// Sirve para una sola llamada a Sign: después de firmar se liberan las referencias
// a la llave y un segundo uso devuelve sri.ErrCertificate.
type Certificate struct {
	mu       sync.Mutex
	key      *rsa.PrivateKey
	leaf     *x509.Certificate
	released bool
}

// NewCertificate arma el manejador a partir de una llave y su certificado.
// Solo se aceptan llaves RSA, que es lo que exige el SRI.
func NewCertificate(key crypto.PrivateKey, leaf *x509.Certificate) (*Certificate, error) {
	if leaf == nil {
		return nil, fmt.Errorf("%w: certificado vacío", sri.ErrCertificate)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: la llave privada debe ser RSA, se recibió %T", sri.ErrCertificate, key)
	}
	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok || pub.N.Cmp(priv.N) != 0 {
		return nil, fmt.Errorf("%w: la llave privada no corresponde al certificado", sri.ErrCertificate)
	}
	return &Certificate{key: priv, leaf: leaf}, nil
}

// LoadFromP12 decodifica un contenedor PKCS#12. Si el contenedor trae la
// cadena de certificación se elige el certificado que corresponde a la llave.
func LoadFromP12(data []byte, password string) (*Certificate, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: p12 vacío", sri.ErrCertificate)
	}
	priv, leaf, err := pkcs12.Decode(data, password)
	if err == nil {
		return NewCertificate(priv, leaf)
	}
	if errors.Is(err, pkcs12.ErrIncorrectPassword) {
		return nil, fmt.Errorf("%w: contraseña del p12 incorrecta", sri.ErrCertificate)
	}

	// Los p12 emitidos por las entidades de certificación suelen traer la
	// cadena completa; pkcs12.Decode solo admite certificado + llave.
	blocks, pemErr := pkcs12.ToPEM(data, password)
	if pemErr != nil {
		if errors.Is(pemErr, pkcs12.ErrIncorrectPassword) {
			return nil, fmt.Errorf("%w: contraseña del p12 incorrecta", sri.ErrCertificate)
		}
		return nil, fmt.Errorf("%w: decodificar p12: %v", sri.ErrCertificate, err)
	}
	return fromBlocks(blocks)
}

// LoadFromP12File lee y decodifica un archivo .p12/.pfx.
func LoadFromP12File(path, password string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: leer p12: %v", sri.ErrCertificate, err)
	}
	return LoadFromP12(data, password)
}

// LoadFromPEM carga el certificado y la llave desde PEM. La llave puede venir
// como PKCS#1, PKCS#8 o PKCS#8 cifrada (ENCRYPTED PRIVATE KEY) con password.
func LoadFromPEM(certPEM, keyPEM []byte, password string) (*Certificate, error) {
	var blocks []*pem.Block
	for _, data := range [][]byte{certPEM, keyPEM} {
		for len(data) > 0 {
			var block *pem.Block
			block, data = pem.Decode(data)
			if block == nil {
				break
			}
			blocks = append(blocks, block)
		}
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no se encontraron bloques PEM", sri.ErrCertificate)
	}
	return fromBlocks(blocks, []byte(password))
}

// LoadFromPEMFiles lee certificado y llave. keyPath vacío indica que ambos están en certPath.
func LoadFromPEMFiles(certPath, keyPath, password string) (*Certificate, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("%w: leer certificado PEM: %v", sri.ErrCertificate, err)
	}
	var keyPEM []byte
	if keyPath != "" {
		if keyPEM, err = os.ReadFile(keyPath); err != nil {
			return nil, fmt.Errorf("%w: leer llave PEM: %v", sri.ErrCertificate, err)
		}
	}
	return LoadFromPEM(certPEM, keyPEM, password)
}

func fromBlocks(blocks []*pem.Block, password ...[]byte) (*Certificate, error) {
	var (
		priv  crypto.PrivateKey
		certs []*x509.Certificate
	)
	for _, b := range blocks {
		switch b.Type {
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: parsear certificado: %v", sri.ErrCertificate, err)
			}
			certs = append(certs, c)
		case "RSA PRIVATE KEY":
			k, err := x509.ParsePKCS1PrivateKey(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: parsear llave PKCS#1: %v", sri.ErrCertificate, err)
			}
			priv = k
		case "PRIVATE KEY":
			// pkcs12.ToPEM entrega la llave RSA en PKCS#1 aunque el tipo diga PRIVATE KEY.
			if k, err := x509.ParsePKCS1PrivateKey(b.Bytes); err == nil {
				priv = k
				continue
			}
			k, err := x509.ParsePKCS8PrivateKey(b.Bytes)
			if err != nil {
				if ec, ecErr := x509.ParseECPrivateKey(b.Bytes); ecErr == nil {
					priv = ec
					continue
				}
				return nil, fmt.Errorf("%w: parsear llave privada: %v", sri.ErrCertificate, err)
			}
			priv = k
		case "ENCRYPTED PRIVATE KEY":
			if len(password) == 0 || len(password[0]) == 0 {
				return nil, fmt.Errorf("%w: la llave PKCS#8 cifrada requiere contraseña", sri.ErrCertificate)
			}
			k, err := pkcs8.ParsePKCS8PrivateKey(b.Bytes, password[0])
			if err != nil {
				return nil, fmt.Errorf("%w: descifrar llave PKCS#8: %v", sri.ErrCertificate, err)
			}
			priv = k
		}
	}
	if priv == nil {
		return nil, fmt.Errorf("%w: no se encontró la llave privada", sri.ErrCertificate)
	}
	rsaKey, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: la llave privada debe ser RSA, se recibió %T", sri.ErrCertificate, priv)
	}
	for _, c := range certs {
		if pub, ok := c.PublicKey.(*rsa.PublicKey); ok && pub.N.Cmp(rsaKey.N) == 0 {
			return NewCertificate(rsaKey, c)
		}
	}
	return nil, fmt.Errorf("%w: ningún certificado corresponde a la llave privada", sri.ErrCertificate)
}

// Subject nombre del titular del certificado.
func (c *Certificate) Subject() string { return c.leaf.Subject.String() }

// Issuer nombre de la entidad emisora.
func (c *Certificate) Issuer() string { return c.leaf.Issuer.String() }

// SerialNumber número de serie en decimal.
func (c *Certificate) SerialNumber() string { return c.leaf.SerialNumber.String() }

func (c *Certificate) NotBefore() time.Time { return c.leaf.NotBefore }
func (c *Certificate) NotAfter() time.Time  { return c.leaf.NotAfter }

// Release suelta las referencias a la llave privada. Es idempotente.
func (c *Certificate) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = nil
	c.released = true
}

// take entrega la llave y el certificado y deja el manejador liberado.
func (c *Certificate) take() (*rsa.PrivateKey, *x509.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || c.key == nil {
		return nil, nil, fmt.Errorf("%w: el certificado ya fue usado o liberado", sri.ErrCertificate)
	}
	key := c.key
	c.key = nil
	c.released = true
	return key, c.leaf, nil
}

// CheckValidity comprueba que now esté dentro del periodo de vigencia del certificado.
func CheckValidity(c *Certificate, now time.Time) error {
	if c == nil || c.leaf == nil {
		return fmt.Errorf("%w: certificado vacío", sri.ErrCertificate)
	}
	return checkLeafValidity(c.leaf, now)
}

func checkLeafValidity(leaf *x509.Certificate, now time.Time) error {
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("%w: vigente desde %s", sri.ErrCertificateNotYetValid, leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("%w: venció el %s", sri.ErrCertificateExpired, leaf.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// CertDigestAndIssuerSerial devuelve el digest SHA-1 del certificado (Base64),
// el nombre del emisor y el serial en decimal para XAdES.
func CertDigestAndIssuerSerial(cert *x509.Certificate) (digestB64 string, issuerName string, serial string) {
	h := sha1.Sum(cert.Raw)
	digestB64 = base64.StdEncoding.EncodeToString(h[:])
	issuerName = cert.Issuer.String()
	serial = cert.SerialNumber.String()
	return digestB64, issuerName, serial
}

// rsaKeyValue módulo y exponente en Base64 para ds:RSAKeyValue.
func rsaKeyValue(pub *rsa.PublicKey) (modulus, exponent string) {
	modulus = base64.StdEncoding.EncodeToString(pub.N.Bytes())
	exponent = base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	return modulus, exponent
}
