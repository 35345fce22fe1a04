package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainQuery  = "navex/query/v1"
	DomainResult = "navex/result/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryFingerprint identifies a compiled query by its dialect, SQL text and
// bound parameters. Two compilations of the same query produce the same
// fingerprint, which makes it usable as a log/trace correlation key.
func QueryFingerprint(dialect, sql string, params IRArray) (string, error) {
	if params == nil {
		params = IRArray{}
	}
	canonical, err := MarshalCanonical(IRObject{
		"dialect": IRString(dialect),
		"sql":     IRString(sql),
		"params":  params,
	})
	if err != nil {
		return "", fmt.Errorf("QueryFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainQuery, canonical), nil
}

// ResultDigest hashes materialized rows in order. Equal digests mean
// byte-identical canonical results.
func ResultDigest(rows IRArray) (string, error) {
	if rows == nil {
		rows = IRArray{}
	}
	canonical, err := MarshalCanonical(rows)
	if err != nil {
		return "", fmt.Errorf("ResultDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainResult, canonical), nil
}

// MustQueryFingerprint is like QueryFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustQueryFingerprint(dialect, sql string, params IRArray) string {
	id, err := QueryFingerprint(dialect, sql, params)
	if err != nil {
		panic(err)
	}
	return id
}
