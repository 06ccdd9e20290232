package billing

import (
	"context"

	"github.com/jhoicas/sri-comprobantes/internal/domain/entity"
	"github.com/jhoicas/sri-comprobantes/internal/infrastructure/sri/signer"
	"github.com/jhoicas/sri-comprobantes/pkg/sri"
)

// DocumentBuilder genera el XML sin firmar de un comprobante.
type DocumentBuilder interface {
	Build(doc entity.Document, key sri.AccessKey, env sri.Environment) ([]byte, error)
}

// DocumentSigner firma el XML con XAdES-BES. Consume el certificado.
type DocumentSigner interface {
	Sign(xml []byte, cert *signer.Certificate) (signer.SignedDocument, error)
}

// SRITransport servicios web de recepción y autorización.
type SRITransport interface {
	Submit(ctx context.Context, env sri.Environment, signedXML []byte) (*sri.SubmissionOutcome, error)
	CheckAuthorization(ctx context.Context, env sri.Environment, key sri.AccessKey) (*sri.AuthorizationOutcome, error)
}

// KeyGenerator arma la clave de acceso de un comprobante con un código numérico nuevo.
type KeyGenerator func(doc entity.Document, env sri.Environment) (sri.AccessKey, error)

// StageSink recibe un evento por cada etapa terminada de una emisión.
// Las implementaciones no deben bloquear.
type StageSink interface {
	StageCompleted(ctx context.Context, ev StageEvent)
}
