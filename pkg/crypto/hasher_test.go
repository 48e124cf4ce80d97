package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	h := NewCredentialHasher()

	digest, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, digest)

	assert.True(t, h.Verify("correct horse battery staple", digest))
	assert.False(t, h.Verify("wrong secret", digest))
	assert.False(t, h.Verify("", digest))
}

func TestHashIsSalted(t *testing.T) {
	h := NewCredentialHasher()

	first, err := h.Hash("sames3cret")
	require.NoError(t, err)
	second, err := h.Hash("sames3cret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "salted hashing must not repeat digests")
	assert.True(t, h.Verify("sames3cret", first))
	assert.True(t, h.Verify("sames3cret", second))
}

func TestTokenDigestStable(t *testing.T) {
	a := TokenDigest("tokenvalue")
	b := TokenDigest("tokenvalue")
	c := TokenDigest("othertoken")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // hex sha256
}
