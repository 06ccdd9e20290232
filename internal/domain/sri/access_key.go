package sri

import (
	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// AccessKeyFields arma los segmentos de la clave de acceso a partir del comprobante.
// La fecha se toma en hora de Ecuador para que coincida con fechaEmision del XML.
func AccessKeyFields(doc entity.Document, env sri.Environment, numericCode string) sri.AccessKeyFields {
	h := doc.DocumentHeader()
	return sri.AccessKeyFields{
		IssueDate:     h.IssueDate.In(sri.Location),
		Kind:          doc.Kind(),
		IssuerRUC:     h.Issuer.RUC,
		Environment:   env,
		Establishment: h.Series.Establishment,
		EmissionPoint: h.Series.EmissionPoint,
		Sequential:    h.Series.Sequential,
		NumericCode:   numericCode,
		EmissionType:  h.EmissionType,
	}
}

// NewAccessKey genera la clave de acceso del comprobante con un código numérico nuevo.
func NewAccessKey(doc entity.Document, env sri.Environment) (sri.AccessKey, error) {
	code, err := sri.NewNumericCode()
	if err != nil {
		return "", err
	}
	return sri.EncodeAccessKey(AccessKeyFields(doc, env, code))
}
