package ingest

import (
	"strings"
	"testing"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	lf := Sign(domain.ProviderAWS, "a,b\n1,2\n")
	crlf := Sign(domain.ProviderAWS, "a,b\r\n1,2\r\n")

	assert.True(t, strings.HasPrefix(lf, SHA256Prefix))
	assert.Len(t, lf, len(SHA256Prefix)+64)
	assert.Equal(t, lf, crlf)
	assert.NotEqual(t, lf, Sign(domain.ProviderAzure, "a,b\n1,2\n"))
	assert.NotEqual(t, lf, Sign(domain.ProviderAWS, "a,b\n1,3\n"))
}

func TestChecksumSigner(t *testing.T) {
	s := NewChecksumSigner()
	sig := s.Sign(domain.ProviderGCP, "x\n1")

	assert.True(t, strings.HasPrefix(sig, ChecksumPrefix))
	assert.Equal(t, sig, s.Sign(domain.ProviderGCP, "x\r\n1"))
	assert.NotEqual(t, sig, s.Sign(domain.ProviderAWS, "x\n1"))
}

func TestMonthSignature(t *testing.T) {
	assert.Equal(t, "sha256:abc#2024-01", MonthSignature("sha256:abc", "2024-01"))
}

func TestSignaturePrefix(t *testing.T) {
	assert.Equal(t, SHA256Prefix, NewSigner().Prefix())
	assert.Equal(t, ChecksumPrefix, NewChecksumSigner().Prefix())

	tests := []struct {
		sig  string
		want string
	}{
		{sig: MonthSignature(Sign(domain.ProviderAWS, "a\n1"), "2024-01"), want: SHA256Prefix},
		{sig: NewChecksumSigner().Sign(domain.ProviderAWS, "a\n1"), want: ChecksumPrefix},
		{sig: "legacy", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SignaturePrefix(tt.sig), tt.sig)
	}
}
