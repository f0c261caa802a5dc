package certutils

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

const pemTypeCertificate = "CERTIFICATE"

type ReadCertificateError struct {
	msg string
}

func (r ReadCertificateError) Error() string {
	return fmt.Sprintf("ReadCertificateError: %s", r.msg)
}

// LoadCertificatesFromPem parses every CERTIFICATE block in data. Other block
// types are skipped.
func LoadCertificatesFromPem(data []byte) ([]*x509.Certificate, error) {
	certs := []*x509.Certificate{}
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != pemTypeCertificate {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return certs, errors.Wrap(err, "LoadCertificatesFromPem")
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return certs, &ReadCertificateError{msg: "no certificates in PEM data"}
	}
	return certs, nil
}

// ReadCertificate reads certificates from the given input string dynamically,
// in the order of file path, certificate literal, base64-encoded certificate.
func ReadCertificate(input string) ([]*x509.Certificate, error) {
	if _, err := os.Stat(input); err == nil {
		certData, err := os.ReadFile(input)
		if err != nil {
			return nil, errors.Wrapf(err, "ReadCertificate: %s", input)
		}
		return LoadCertificatesFromPem(certData)
	}

	if certs, err := LoadCertificatesFromPem([]byte(input)); err == nil {
		return certs, nil
	}

	certData, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return nil, &ReadCertificateError{msg: "no PEM data found as filepath, literal or base64-encoded literal"}
	}
	return LoadCertificatesFromPem(certData)
}

// CertPool returns the system roots extended with the certificates read from
// each input (see ReadCertificate).
func CertPool(inputs []string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}

	for _, input := range inputs {
		certs, err := ReadCertificate(input)
		if err != nil {
			return nil, err
		}
		for _, cert := range certs {
			pool.AddCert(cert)
		}
	}
	return pool, nil
}
