package netguard

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrPinMismatch means no certificate in the presented chain matched a pin.
	ErrPinMismatch = errors.New("no pinned certificate or public key in chain")
	// ErrNoEvaluator means the host has no evaluator while every host must be
	// evaluated.
	ErrNoEvaluator = errors.New("no trust evaluator for host")
	// ErrEmptyChain means the peer presented no certificates.
	ErrEmptyChain = errors.New("empty certificate chain")
)

// TrustError is a failed trust evaluation for Host.
type TrustError struct {
	Host string
	Err  error
}

func (e *TrustError) Error() string {
	return fmt.Sprintf("trust evaluation failed for %s: %v", e.Host, e.Err)
}

func (e *TrustError) Unwrap() error {
	return e.Err
}

// TrustEvaluator checks a verified peer chain for host. The chain has already
// passed standard certificate verification when Evaluate is called.
type TrustEvaluator interface {
	Evaluate(host string, chain []*x509.Certificate) error
}

// DefaultEvaluation accepts any chain that passed standard verification.
type DefaultEvaluation struct{}

// Evaluate implements TrustEvaluator.
func (DefaultEvaluation) Evaluate(_ string, chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	return nil
}

// PublicKeyPinning accepts a chain containing a certificate whose SPKI
// SHA-256 fingerprint is pinned.
type PublicKeyPinning struct {
	pins map[string]struct{}
}

// NewPublicKeyPinning pins base64 encoded SHA-256 SPKI fingerprints, as
// produced by SPKIFingerprint.
func NewPublicKeyPinning(fingerprints ...string) *PublicKeyPinning {
	pins := make(map[string]struct{}, len(fingerprints))
	for _, fp := range fingerprints {
		pins[strings.TrimPrefix(strings.TrimSpace(fp), "sha256/")] = struct{}{}
	}
	return &PublicKeyPinning{pins: pins}
}

// Evaluate implements TrustEvaluator.
func (p *PublicKeyPinning) Evaluate(_ string, chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	for _, cert := range chain {
		if _, ok := p.pins[SPKIFingerprint(cert)]; ok {
			return nil
		}
	}
	return ErrPinMismatch
}

// CertificatePinning accepts a chain containing one of the pinned
// certificates byte for byte.
type CertificatePinning struct {
	certs []*x509.Certificate
}

// NewCertificatePinning pins the given certificates.
func NewCertificatePinning(certs ...*x509.Certificate) *CertificatePinning {
	return &CertificatePinning{certs: certs}
}

// Evaluate implements TrustEvaluator.
func (p *CertificatePinning) Evaluate(_ string, chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	for _, presented := range chain {
		for _, pinned := range p.certs {
			if bytes.Equal(presented.Raw, pinned.Raw) {
				return nil
			}
		}
	}
	return ErrPinMismatch
}

// SPKIFingerprint returns the base64 SHA-256 digest of the certificate's
// SubjectPublicKeyInfo.
func SPKIFingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// trustPolicy picks the evaluator for a host.
type trustPolicy struct {
	evaluators              map[string]TrustEvaluator
	allHostsMustBeEvaluated bool
}

func (p trustPolicy) evaluate(host string, chain []*x509.Certificate) error {
	evaluator, ok := p.evaluators[strings.ToLower(host)]
	if !ok {
		if p.allHostsMustBeEvaluated {
			return &TrustError{Host: host, Err: ErrNoEvaluator}
		}
		return nil
	}
	if err := evaluator.Evaluate(host, chain); err != nil {
		return &TrustError{Host: host, Err: err}
	}
	return nil
}

// newPinnedTransport clones base and runs the configured evaluators on every
// TLS handshake it dials. Hosts are matched on the dialed name, so IP
// literals work as keys too.
func newPinnedTransport(base *http.Transport, evaluators map[string]TrustEvaluator, allHostsMustBeEvaluated bool) *http.Transport {
	policy := trustPolicy{
		evaluators:              make(map[string]TrustEvaluator, len(evaluators)),
		allHostsMustBeEvaluated: allHostsMustBeEvaluated,
	}
	for host, ev := range evaluators {
		policy.evaluators[strings.ToLower(host)] = ev
	}

	var tlsBase *tls.Config
	if base.TLSClientConfig != nil {
		tlsBase = base.TLSClientConfig.Clone()
	} else {
		tlsBase = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	transport := base.Clone()
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		cfg := tlsBase.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			return policy.evaluate(host, cs.PeerCertificates)
		}
		dialer := &tls.Dialer{Config: cfg}
		return dialer.DialContext(ctx, network, addr)
	}
	return transport
}
