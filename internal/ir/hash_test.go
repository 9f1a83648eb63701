package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	v := IRObject{"op": IRString("lt"), "field": IRString("Member.age"), "value": IRInt(28)}
	reordered := IRObject{"value": IRInt(28), "field": IRString("Member.age"), "op": IRString("lt")}

	fp1, err := Fingerprint(DomainPredicate, v)
	require.NoError(t, err)
	fp2, err := Fingerprint(DomainPredicate, reordered)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintDomainSeparation(t *testing.T) {
	v := IRString("same")
	assert.NotEqual(t,
		MustFingerprint(DomainPredicate, v),
		MustFingerprint(DomainQuery, v))
}

func TestFingerprintChangesWithInput(t *testing.T) {
	a := MustFingerprint(DomainPredicate, IRObject{"age": IRInt(28)})
	b := MustFingerprint(DomainPredicate, IRObject{"age": IRInt(29)})
	assert.NotEqual(t, a, b)
}

func TestMustFingerprintPanicsOnFloat(t *testing.T) {
	assert.Panics(t, func() {
		MustFingerprint(DomainPredicate, IRFloat(0.5))
	})
}
