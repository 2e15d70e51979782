package secure

import (
	jose "github.com/go-jose/go-jose/v4"

	"github.com/bankwatch/bankwatch/internal/errors"
)

// Encrypt wraps the plaintext body in a confidentiality envelope using the
// configured key-wrap and content-encryption algorithms. The output is the
// JWE JSON serialization, which binds the algorithm identifiers to the
// ciphertext.
func (p *Pipeline) Encrypt(plaintext []byte) ([]byte, error) {
	keyAlg, err := p.keyWrapAlgorithm()
	if err != nil {
		return nil, err
	}
	enc, err := p.contentEncryption()
	if err != nil {
		return nil, err
	}

	key, err := p.loadSymmetricKey()
	if err != nil {
		return nil, err
	}

	encrypter, err := jose.NewEncrypter(enc, jose.Recipient{Algorithm: keyAlg, Key: key}, nil)
	if err != nil {
		return nil, &errors.ErrProtocol{Operation: "create encrypter", Err: err}
	}

	obj, err := encrypter.Encrypt(plaintext)
	if err != nil {
		return nil, &errors.ErrProtocol{Operation: "encrypt payload", Err: err}
	}

	return []byte(obj.FullSerialize()), nil
}

// Decrypt reverses Encrypt: it parses the envelope and recovers the exact
// original plaintext bytes with the same symmetric key. A malformed
// envelope yields ErrProtocol; the call fails, nothing is retried here.
func (p *Pipeline) Decrypt(raw []byte) ([]byte, error) {
	keyAlg, err := p.keyWrapAlgorithm()
	if err != nil {
		return nil, err
	}
	enc, err := p.contentEncryption()
	if err != nil {
		return nil, err
	}

	key, err := p.loadSymmetricKey()
	if err != nil {
		return nil, err
	}

	obj, err := jose.ParseEncryptedJSON(string(raw), []jose.KeyAlgorithm{keyAlg}, []jose.ContentEncryption{enc})
	if err != nil {
		return nil, &errors.ErrProtocol{Operation: "parse envelope", Err: err}
	}

	plaintext, err := obj.Decrypt(key)
	if err != nil {
		return nil, &errors.ErrProtocol{Operation: "decrypt envelope", Err: err}
	}

	return plaintext, nil
}
