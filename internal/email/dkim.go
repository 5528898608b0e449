package email

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	msgauthdkim "github.com/emersion/go-msgauth/dkim"
)

var dkimHeaderKeys = []string{
	"from",
	"to",
	"reply-to",
	"subject",
	"date",
	"mime-version",
	"content-type",
	"message-id",
}

// DKIMSigner adds a DKIM-Signature header to outgoing SMTP messages.
type DKIMSigner struct {
	domain   string
	selector string
	key      crypto.Signer
}

// LoadDKIMSigner reads a PEM private key from keyFile. An empty selector and
// key file disables signing and returns nil.
func LoadDKIMSigner(domain, selector, keyFile string) (*DKIMSigner, error) {
	if selector == "" && keyFile == "" {
		return nil, nil
	}
	if selector == "" {
		return nil, fmt.Errorf("dkim: selector is required when a key file is set")
	}
	if keyFile == "" {
		return nil, fmt.Errorf("dkim: key file is required when a selector is set")
	}

	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("dkim: read private key: %w", err)
	}
	return NewDKIMSigner(domain, selector, data)
}

// NewDKIMSigner parses a PKCS#1 or PKCS#8 PEM key.
func NewDKIMSigner(domain, selector string, pemData []byte) (*DKIMSigner, error) {
	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("dkim: parse private key: %w", err)
	}
	return &DKIMSigner{domain: domain, selector: selector, key: key}, nil
}

// Sign returns message with a DKIM-Signature prepended. The signing domain
// defaults to the domain of from.
func (s *DKIMSigner) Sign(message []byte, from string) ([]byte, error) {
	if s == nil {
		return message, nil
	}

	domain := s.domain
	if domain == "" {
		domain = extractDomain(from)
	}
	if domain == "" {
		return nil, fmt.Errorf("dkim: unable to determine signing domain")
	}

	opts := &msgauthdkim.SignOptions{
		Domain:                 domain,
		Selector:               s.selector,
		Signer:                 s.key,
		HeaderCanonicalization: msgauthdkim.CanonicalizationRelaxed,
		BodyCanonicalization:   msgauthdkim.CanonicalizationRelaxed,
		HeaderKeys:             dkimHeaderKeys,
	}

	var signed bytes.Buffer
	if err := msgauthdkim.Sign(&signed, bytes.NewReader(message), opts); err != nil {
		return nil, fmt.Errorf("dkim: signing failed: %w", err)
	}
	return signed.Bytes(), nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			break
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			return x509.ParsePKCS1PrivateKey(block.Bytes)
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			if signer, ok := key.(crypto.Signer); ok {
				return signer, nil
			}
			return nil, fmt.Errorf("unsupported private key type in PKCS#8 container")
		}
		pemData = rest
	}
	return nil, fmt.Errorf("no private key found in PEM data")
}
