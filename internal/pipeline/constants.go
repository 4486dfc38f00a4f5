package pipeline

import "errors"

// DefaultPeriod selects every month bucket when the caller leaves the period empty.
const DefaultPeriod = "all"

// ErrSignatureScheme is returned by Load when saved state was signed with a
// different scheme than the configured importer uses.
var ErrSignatureScheme = errors.New("signature scheme mismatch")
