package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionDigestDeterminism(t *testing.T) {
	rec := createTestInteraction("run1", 0, 3, "elastic")

	d1, err := InteractionDigest(rec)
	require.NoError(t, err)
	d2, err := InteractionDigest(rec)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64) // SHA-256 hex
}

func TestInteractionDigestIgnoresStoredDigest(t *testing.T) {
	rec := createTestInteraction("run1", 0, 0, "elastic")
	rec.Digest = "aaaa"
	d1, err := InteractionDigest(rec)
	require.NoError(t, err)

	rec.Digest = "bbbb"
	d2, err := InteractionDigest(rec)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestInteractionDigestChangesWithKinematics(t *testing.T) {
	rec := createTestInteraction("run1", 0, 0, "elastic")
	d1, err := InteractionDigest(rec)
	require.NoError(t, err)

	rec.In[0].Momentum[1] += 1e-15
	d2, err := InteractionDigest(rec)
	require.NoError(t, err)

	// Bit-level changes must change the digest.
	assert.NotEqual(t, d1, d2)
}

func TestInteractionDigestChangesWithProcess(t *testing.T) {
	rec := createTestInteraction("run1", 0, 0, "elastic")
	d1, err := InteractionDigest(rec)
	require.NoError(t, err)

	rec.Process = "2to2"
	d2, err := InteractionDigest(rec)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestInteractionDigestChangesWithSeq(t *testing.T) {
	a := createTestInteraction("run1", 0, 0, "elastic")
	b := createTestInteraction("run1", 0, 0, "elastic")
	b.Seq = 1

	da, err := InteractionDigest(a)
	require.NoError(t, err)
	db, err := InteractionDigest(b)
	require.NoError(t, err)

	assert.NotEqual(t, da, db)
}

func TestEventDigestDeterminism(t *testing.T) {
	digests := []string{"d0", "d1", "d2"}

	a, err := EventDigest(0, 5, 7, digests)
	require.NoError(t, err)
	b, err := EventDigest(0, 5, 7, digests)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestEventDigestOrderSensitive(t *testing.T) {
	a, err := EventDigest(0, 5, 7, []string{"d0", "d1"})
	require.NoError(t, err)
	b, err := EventDigest(0, 5, 7, []string{"d1", "d0"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEventDigestChangesWithCounts(t *testing.T) {
	a, err := EventDigest(0, 5, 7, nil)
	require.NoError(t, err)
	b, err := EventDigest(0, 5, 8, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestRunDigestDeterminism(t *testing.T) {
	a, err := RunDigest(42, "0.1.0", []string{"e0", "e1"})
	require.NoError(t, err)
	b, err := RunDigest(42, "0.1.0", []string{"e0", "e1"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestRunDigestChangesWithSeed(t *testing.T) {
	a, err := RunDigest(42, "0.1.0", []string{"e0"})
	require.NoError(t, err)
	b, err := RunDigest(43, "0.1.0", []string{"e0"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestRunDigestChangesWithEngineVersion(t *testing.T) {
	a, err := RunDigest(42, "0.1.0", []string{"e0"})
	require.NoError(t, err)
	b, err := RunDigest(42, "0.2.0", []string{"e0"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	// Same bytes hashed under different domains must differ.
	payload := []byte(`{"a":1}`)

	assert.NotEqual(t,
		hashWithDomain(interactionDomain, payload),
		hashWithDomain(eventDomain, payload))
	assert.NotEqual(t,
		hashWithDomain(eventDomain, payload),
		hashWithDomain(runDomain, payload))
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// The 0x00 separator prevents ambiguity between domain and data:
	// ("ab", "c") and ("a", "bc") must not collide.
	assert.NotEqual(t,
		hashWithDomain("ab", []byte("c")),
		hashWithDomain("a", []byte("bc")))
}

func TestHashHexEncoding(t *testing.T) {
	h := hashWithDomain(interactionDomain, []byte("x"))

	assert.Len(t, h, 64)
	for _, c := range h {
		valid := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		assert.True(t, valid, "unexpected character %q in hash", c)
	}
}
