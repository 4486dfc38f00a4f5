package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/dvloznov/cost-dashboard/internal/domain"
)

const (
	// SHA256Prefix marks signatures computed with SHA-256.
	SHA256Prefix = "sha256:"
	// ChecksumPrefix marks signatures computed with the rolling checksum.
	ChecksumPrefix = "cksum:"
)

// Signer derives the content signature of an imported file.
type Signer struct {
	newHash func() hash.Hash
}

// NewSigner returns a SHA-256 signer.
func NewSigner() *Signer {
	return &Signer{newHash: sha256.New}
}

// NewChecksumSigner returns a signer that only uses the rolling checksum.
func NewChecksumSigner() *Signer {
	return &Signer{}
}

// Sign identifies text imported for provider. Line endings are normalized
// so the same export saved on different platforms signs identically.
func (s *Signer) Sign(provider domain.Provider, text string) string {
	payload := []byte(string(provider) + "\n" + normalizeLineEndings(text))

	if s != nil && s.newHash != nil {
		if sum, err := digest(s.newHash(), payload); err == nil {
			return SHA256Prefix + sum
		}
	}

	return ChecksumPrefix + fmt.Sprintf("%08x", rollingChecksum(payload))
}

// Prefix is the scheme marker s puts on its signatures. Signatures of
// different schemes never compare equal, so a store must keep one scheme.
func (s *Signer) Prefix() string {
	if s != nil && s.newHash != nil {
		return SHA256Prefix
	}
	return ChecksumPrefix
}

// SignaturePrefix returns the scheme marker of sig, or "" when it has none.
func SignaturePrefix(sig string) string {
	if i := strings.Index(sig, ":"); i >= 0 {
		return sig[:i+1]
	}
	return ""
}

// Sign is NewSigner().Sign.
func Sign(provider domain.Provider, text string) string {
	return NewSigner().Sign(provider, text)
}

// MonthSignature scopes a file signature to one month bucket.
func MonthSignature(sig, monthKey string) string {
	return sig + "#" + monthKey
}

func digest(h hash.Hash, payload []byte) (string, error) {
	if _, err := h.Write(payload); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// rollingChecksum is a 32-bit polynomial hash over the payload.
func rollingChecksum(payload []byte) uint32 {
	var h uint32 = 2166136261
	for _, b := range payload {
		h = h*31 + uint32(b)
	}
	return h
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
