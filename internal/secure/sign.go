package secure

import (
	"encoding/base64"
	"fmt"
	"strings"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/bankwatch/bankwatch/internal/errors"
)

// SignDetached computes a detached JWS over the canonical payload bytes.
// The signature covers base64url(header) + "." + base64url(payload); the
// returned token elides the payload segment: "<header>..<signature>".
// The double dot is the wire format the receiver expects.
func (p *Pipeline) SignDetached(payload []byte) (string, error) {
	alg, err := p.signatureAlgorithm()
	if err != nil {
		return "", err
	}

	key, err := p.loadPrivateKey()
	if err != nil {
		return "", err
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, nil)
	if err != nil {
		return "", &errors.ErrProtocol{Operation: "create signer", Err: err}
	}

	obj, err := signer.Sign(payload)
	if err != nil {
		return "", &errors.ErrProtocol{Operation: "sign payload", Err: err}
	}

	compact, err := obj.CompactSerialize()
	if err != nil {
		return "", &errors.ErrProtocol{Operation: "serialize signature", Err: err}
	}

	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return "", &errors.ErrProtocol{Operation: "serialize signature", Err: fmt.Errorf("unexpected compact form")}
	}

	return parts[0] + ".." + parts[2], nil
}

// VerifyDetached checks a detached signature against the payload it claims
// to cover, using the public half of the configured signing key. Altering
// any byte of the payload invalidates verification.
func (p *Pipeline) VerifyDetached(payload []byte, token string) error {
	alg, err := p.signatureAlgorithm()
	if err != nil {
		return err
	}

	key, err := p.loadPrivateKey()
	if err != nil {
		return err
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] != "" {
		return &errors.ErrProtocol{Operation: "parse detached signature", Err: fmt.Errorf("not a detached token")}
	}

	full := parts[0] + "." + base64.RawURLEncoding.EncodeToString(payload) + "." + parts[2]
	obj, err := jose.ParseSigned(full, []jose.SignatureAlgorithm{alg})
	if err != nil {
		return &errors.ErrProtocol{Operation: "parse detached signature", Err: err}
	}

	if _, err := obj.Verify(&key.PublicKey); err != nil {
		return &errors.ErrProtocol{Operation: "verify detached signature", Err: err}
	}

	return nil
}
