package net

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	gnet "net"
	"time"

	"golang.org/x/crypto/blake2b"
)

const alpn = "minilua"

func selfSigned() (cert tls.Certificate, err error) {
	esk, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate ECDSA key: %v", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(24 * time.Hour)

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate serial number: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"minilua"},
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,

		IPAddresses: []gnet.IP{gnet.IPv4(127, 0, 0, 1), gnet.IPv6loopback},
		DNSNames:    []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &esk.PublicKey, esk)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create X.509 certificate: %v", err)
	}

	certPem := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	skBytes, err := x509.MarshalECPrivateKey(esk)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("marshal ECDSA private key: %v", err)
	}
	keyPem := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: skBytes})

	if cert, err = tls.X509KeyPair(certPem, keyPem); err != nil {
		return tls.Certificate{}, fmt.Errorf("create TLS certificate: %v", err)
	}
	return
}

func serverTLS() (*tls.Config, error) {
	cert, err := selfSigned()
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpn},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ErrPinMismatch means the server's certificate isn't the pinned one.
var ErrPinMismatch = errors.New("server certificate does not match pin")

func verifyPin(pin []byte) func([][]byte, [][]*x509.Certificate) error {
	return func(raw [][]byte, _ [][]*x509.Certificate) error {
		if len(raw) == 0 {
			return errors.New("server sent no certificate")
		}
		if fp := blake2b.Sum256(raw[0]); !bytes.Equal(fp[:], pin) {
			return fmt.Errorf("%w: got %x", ErrPinMismatch, fp)
		}
		return nil
	}
}

// clientTLS checks the server's certificate against pin, or accepts anything if pin is empty.
// Servers use throwaway self-signed certificates, so there's no chain to verify either way.
func clientTLS(pin []byte) *tls.Config {
	conf := &tls.Config{
		NextProtos:         []string{alpn},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
	}
	if len(pin) > 0 {
		conf.VerifyPeerCertificate = verifyPin(pin)
	}
	return conf
}
