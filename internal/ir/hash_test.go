package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryFingerprintDeterminism(t *testing.T) {
	params := IRArray{IRInt(1), IRString("go")}

	id1, err := QueryFingerprint("sqlite", "SELECT 1 WHERE ? = ?", params)
	require.NoError(t, err)
	id2, err := QueryFingerprint("sqlite", "SELECT 1 WHERE ? = ?", IRArray{IRInt(1), IRString("go")})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestQueryFingerprintChangesWithInput(t *testing.T) {
	base := MustQueryFingerprint("sqlite", "SELECT ?", IRArray{IRInt(1)})

	tests := []struct {
		name    string
		dialect string
		sql     string
		params  IRArray
	}{
		{"dialect", "postgres", "SELECT ?", IRArray{IRInt(1)}},
		{"sql", "sqlite", "SELECT ? ", IRArray{IRInt(1)}},
		{"param value", "sqlite", "SELECT ?", IRArray{IRInt(2)}},
		{"param type", "sqlite", "SELECT ?", IRArray{IRString("1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, MustQueryFingerprint(tt.dialect, tt.sql, tt.params))
		})
	}
}

func TestQueryFingerprintNilParams(t *testing.T) {
	assert.Equal(t,
		MustQueryFingerprint("sqlite", "SELECT 1", nil),
		MustQueryFingerprint("sqlite", "SELECT 1", IRArray{}))
}

func TestResultDigestOrderSensitive(t *testing.T) {
	a := IRObject{"Id": IRInt(1)}
	b := IRObject{"Id": IRInt(2)}

	d1, err := ResultDigest(IRArray{a, b})
	require.NoError(t, err)
	d2, err := ResultDigest(IRArray{b, a})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)

	d3, err := ResultDigest(IRArray{IRObject{"Id": IRInt(1)}, IRObject{"Id": IRInt(2)}})
	require.NoError(t, err)
	assert.Equal(t, d1, d3)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("[]")
	assert.NotEqual(t, hashWithDomain(DomainQuery, data), hashWithDomain(DomainResult, data))
}

func TestMustQueryFingerprintPanicsOnUnsupportedValue(t *testing.T) {
	assert.Panics(t, func() {
		MustQueryFingerprint("sqlite", "SELECT ?", IRArray{badValue{}})
	})
}

// badValue satisfies IRValue but is not serializable.
type badValue struct{}

func (badValue) irValue() {}
