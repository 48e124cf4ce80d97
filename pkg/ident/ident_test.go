package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDistinctWithStablePrefix(t *testing.T) {
	const n = 1000
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id := Generate(KindProject)
		require.True(t, strings.HasPrefix(id, "proj_"), "id %q missing prefix", id)
		require.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}

func TestGenerateKnownKinds(t *testing.T) {
	assert.True(t, HasKind(Generate(KindUser), KindUser))
	assert.True(t, HasKind(Generate(KindKnowledge), KindKnowledge))
	assert.True(t, HasKind(Generate(KindSession), KindSession))
	assert.True(t, HasKind(Generate(KindRefreshToken), KindRefreshToken))
}

func TestGenerateUnknownKindUsesKindAsPrefix(t *testing.T) {
	id := Generate("widget")
	assert.True(t, strings.HasPrefix(id, "widget_"))
}

func TestFormatIsStable(t *testing.T) {
	id := Generate(KindProject)
	parts := strings.SplitN(id, "_", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[1], 32, "suffix is a dashless uuid")
}
