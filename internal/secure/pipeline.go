// Package secure implements the signed and encrypted payload pipeline for
// outbound API calls. Detached signing and the confidentiality envelope are
// two independent transforms: the signature always covers the plaintext
// body, whether or not the body is encrypted afterwards.
package secure

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"sync"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/errors"
)

// Pipeline holds the configured key material and algorithm selectors.
// Keys are loaded lazily on first use and cached; missing or unusable key
// material surfaces as ErrKeyMaterial at the operation that needed it.
type Pipeline struct {
	cfg config.SecurityConfig

	mu         sync.Mutex
	privateKey *rsa.PrivateKey
	symmetric  []byte
	certB64    string
}

// NewPipeline creates a pipeline from security configuration.
func NewPipeline(cfg config.SecurityConfig) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// EncryptionEnabled reports whether outbound bodies are wrapped in the
// confidentiality envelope.
func (p *Pipeline) EncryptionEnabled() bool {
	return p.cfg.EncryptPayloads
}

func (p *Pipeline) signatureAlgorithm() (jose.SignatureAlgorithm, error) {
	switch strings.ToUpper(p.cfg.SignatureAlg) {
	case "RS256":
		return jose.RS256, nil
	case "RS384":
		return jose.RS384, nil
	case "RS512":
		return jose.RS512, nil
	case "PS256":
		return jose.PS256, nil
	default:
		return "", &errors.ErrKeyMaterial{
			Path:   p.cfg.PrivateKeyPath,
			Reason: fmt.Sprintf("unsupported signature algorithm %q", p.cfg.SignatureAlg),
		}
	}
}

func (p *Pipeline) keyWrapAlgorithm() (jose.KeyAlgorithm, error) {
	switch strings.ToUpper(p.cfg.KeyWrapAlg) {
	case "A128KW":
		return jose.A128KW, nil
	case "A192KW":
		return jose.A192KW, nil
	case "A256KW":
		return jose.A256KW, nil
	case "DIR":
		return jose.DIRECT, nil
	default:
		return "", &errors.ErrKeyMaterial{
			Path:   p.cfg.SymmetricKeyPath,
			Reason: fmt.Sprintf("unsupported key wrap algorithm %q", p.cfg.KeyWrapAlg),
		}
	}
}

func (p *Pipeline) contentEncryption() (jose.ContentEncryption, error) {
	switch strings.ToUpper(p.cfg.ContentEncryption) {
	case "A128GCM":
		return jose.A128GCM, nil
	case "A192GCM":
		return jose.A192GCM, nil
	case "A256GCM":
		return jose.A256GCM, nil
	case "A128CBC-HS256":
		return jose.A128CBC_HS256, nil
	default:
		return "", &errors.ErrKeyMaterial{
			Path:   p.cfg.SymmetricKeyPath,
			Reason: fmt.Sprintf("unsupported content encryption %q", p.cfg.ContentEncryption),
		}
	}
}

// loadPrivateKey parses the configured PEM signing key, accepting PKCS#1
// and PKCS#8 encodings.
func (p *Pipeline) loadPrivateKey() (*rsa.PrivateKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.privateKey != nil {
		return p.privateKey, nil
	}

	data, err := os.ReadFile(p.cfg.PrivateKeyPath)
	if err != nil {
		return nil, &errors.ErrKeyMaterial{Path: p.cfg.PrivateKeyPath, Err: err}
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &errors.ErrKeyMaterial{Path: p.cfg.PrivateKeyPath, Reason: "no PEM block found"}
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		p.privateKey = key
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, &errors.ErrKeyMaterial{Path: p.cfg.PrivateKeyPath, Err: err}
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, &errors.ErrKeyMaterial{Path: p.cfg.PrivateKeyPath, Reason: "not an RSA private key"}
	}

	p.privateKey = key
	return key, nil
}

// loadSymmetricKey reads the base64-encoded symmetric key and checks that
// it is a supported AES length.
func (p *Pipeline) loadSymmetricKey() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.symmetric != nil {
		return p.symmetric, nil
	}

	data, err := os.ReadFile(p.cfg.SymmetricKeyPath)
	if err != nil {
		return nil, &errors.ErrKeyMaterial{Path: p.cfg.SymmetricKeyPath, Err: err}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, &errors.ErrKeyMaterial{Path: p.cfg.SymmetricKeyPath, Err: err}
	}

	switch len(raw) {
	case 16, 24, 32:
	default:
		return nil, &errors.ErrKeyMaterial{
			Path:   p.cfg.SymmetricKeyPath,
			Reason: fmt.Sprintf("expected 16/24/32 bytes, got %d", len(raw)),
		}
	}

	p.symmetric = raw
	return raw, nil
}

// ClientCertificateB64 returns the configured client certificate as a
// single-line base64 string for the X-Client-Certificate header. A PEM
// certificate yields the base64 of its DER block; raw DER is encoded as-is.
func (p *Pipeline) ClientCertificateB64() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.certB64 != "" {
		return p.certB64, nil
	}

	if p.cfg.ClientCertPath == "" {
		return "", &errors.ErrKeyMaterial{Path: "(unset)", Reason: "client certificate path not configured"}
	}

	data, err := os.ReadFile(p.cfg.ClientCertPath)
	if err != nil {
		return "", &errors.ErrKeyMaterial{Path: p.cfg.ClientCertPath, Err: err}
	}

	if block, _ := pem.Decode(data); block != nil && block.Type == "CERTIFICATE" {
		p.certB64 = base64.StdEncoding.EncodeToString(block.Bytes)
		return p.certB64, nil
	}

	p.certB64 = base64.StdEncoding.EncodeToString(data)
	return p.certB64, nil
}
