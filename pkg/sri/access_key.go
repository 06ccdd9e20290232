package sri

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// AccessKeyLength longitud de la clave de acceso (48 dígitos + verificador).
const AccessKeyLength = 49

// Location zona horaria de Ecuador continental (UTC-5, sin horario de verano).
var Location = time.FixedZone("ECT", -5*60*60)

// Anchos de cada segmento de la clave de acceso (Ficha Técnica, tabla 1).
const (
	widthDate          = 8
	widthKind          = 2
	widthRUC           = 13
	widthEnvironment   = 1
	widthEstablishment = 3
	widthEmissionPoint = 3
	widthSequential    = 9
	widthNumericCode   = 8
	widthEmissionType  = 1
)

// AccessKeyFields segmentos que componen la clave de acceso.
type AccessKeyFields struct {
	IssueDate     time.Time
	Kind          DocumentKind
	IssuerRUC     string
	Environment   Environment
	Establishment string
	EmissionPoint string
	Sequential    string
	NumericCode   string
	EmissionType  string
}

// AccessKey clave de acceso de 49 dígitos.
type AccessKey string

func (k AccessKey) String() string { return string(k) }

// Verify recalcula el dígito verificador y lo compara con el último dígito.
func (k AccessKey) Verify() bool {
	return VerifyAccessKey(string(k))
}

// EncodeAccessKey arma los 48 dígitos en el orden oficial y agrega el dígito
// verificador módulo 11. Cada segmento se rellena con ceros a la izquierda;
// un segmento no numérico o más largo que su ancho se rechaza.
func EncodeAccessKey(f AccessKeyFields) (AccessKey, error) {
	if f.IssueDate.IsZero() {
		return "", invalidField("fechaEmision", "fecha vacía")
	}
	if !f.Environment.Valid() {
		return "", invalidField("ambiente", "valor %q no permitido", string(f.Environment))
	}
	emissionType := f.EmissionType
	if emissionType == "" {
		emissionType = EmissionTypeNormal
	}

	segments := []struct {
		name  string
		value string
		width int
	}{
		{"codDoc", string(f.Kind), widthKind},
		{"ruc", f.IssuerRUC, widthRUC},
		{"ambiente", string(f.Environment), widthEnvironment},
		{"estab", f.Establishment, widthEstablishment},
		{"ptoEmi", f.EmissionPoint, widthEmissionPoint},
		{"secuencial", f.Sequential, widthSequential},
		{"codigoNumerico", f.NumericCode, widthNumericCode},
		{"tipoEmision", emissionType, widthEmissionType},
	}

	var sb strings.Builder
	sb.Grow(AccessKeyLength)
	sb.WriteString(f.IssueDate.Format("02012006"))
	for _, s := range segments {
		padded, err := padDigits(s.name, s.value, s.width)
		if err != nil {
			return "", err
		}
		sb.WriteString(padded)
	}

	base := sb.String()
	digit, err := CheckDigit(base)
	if err != nil {
		return "", err
	}
	return AccessKey(base + string(rune('0'+digit))), nil
}

// CheckDigit calcula el dígito verificador módulo 11 de una cadena de dígitos.
// Los factores 2..7 se aplican de derecha a izquierda en ciclo; el resultado
// es 11 - (suma mod 11), con 11 → 0 y 10 → 1.
func CheckDigit(digits string) (int, error) {
	if digits == "" {
		return 0, invalidField("claveAcceso", "cadena vacía")
	}
	sum := 0
	factor := 2
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return 0, invalidField("claveAcceso", "carácter no numérico %q en la posición %d", c, i+1)
		}
		sum += int(c-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	digit := 11 - sum%11
	switch digit {
	case 11:
		return 0, nil
	case 10:
		return 1, nil
	default:
		return digit, nil
	}
}

// VerifyAccessKey valida longitud, contenido numérico y dígito verificador.
func VerifyAccessKey(key string) bool {
	if len(key) != AccessKeyLength {
		return false
	}
	digit, err := CheckDigit(key[:AccessKeyLength-1])
	if err != nil {
		return false
	}
	return int(key[AccessKeyLength-1]-'0') == digit
}

// ParseAccessKey descompone una clave de acceso válida en sus segmentos.
func ParseAccessKey(key string) (AccessKeyFields, error) {
	if len(key) != AccessKeyLength {
		return AccessKeyFields{}, invalidField("claveAcceso", "se esperaban %d dígitos, se recibieron %d", AccessKeyLength, len(key))
	}
	if !VerifyAccessKey(key) {
		return AccessKeyFields{}, invalidField("claveAcceso", "dígito verificador incorrecto")
	}

	pos := 0
	next := func(width int) string {
		s := key[pos : pos+width]
		pos += width
		return s
	}

	date, err := time.ParseInLocation("02012006", next(widthDate), Location)
	if err != nil {
		return AccessKeyFields{}, invalidField("fechaEmision", "fecha inválida: %v", err)
	}
	f := AccessKeyFields{
		IssueDate:     date,
		Kind:          DocumentKind(next(widthKind)),
		IssuerRUC:     next(widthRUC),
		Environment:   Environment(next(widthEnvironment)),
		Establishment: next(widthEstablishment),
		EmissionPoint: next(widthEmissionPoint),
		Sequential:    next(widthSequential),
		NumericCode:   next(widthNumericCode),
		EmissionType:  next(widthEmissionType),
	}
	if !f.Environment.Valid() {
		return AccessKeyFields{}, invalidField("ambiente", "valor %q no permitido", string(f.Environment))
	}
	return f, nil
}

// NewNumericCode genera el código numérico aleatorio de 8 dígitos.
func NewNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
	if err != nil {
		return "", fmt.Errorf("sri: generar código numérico: %w", err)
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}

// FormatDocumentNumber número de comprobante en formato 001-001-000000001.
func FormatDocumentNumber(establishment, emissionPoint, sequential string) string {
	return fmt.Sprintf("%s-%s-%s",
		leftPad(establishment, widthEstablishment),
		leftPad(emissionPoint, widthEmissionPoint),
		leftPad(sequential, widthSequential))
}

func padDigits(field, value string, width int) (string, error) {
	if value == "" {
		return "", invalidField(field, "valor vacío")
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return "", invalidField(field, "%q contiene caracteres no numéricos", value)
		}
	}
	if len(value) > width {
		return "", invalidField(field, "%q excede %d dígitos", value, width)
	}
	return leftPad(value, width), nil
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
