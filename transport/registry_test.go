package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddReportsFirst(t *testing.T) {
	r := NewRegistry()

	_, first := r.Add("007/IDProducts", func([]byte) {})
	assert.True(t, first)

	_, first = r.Add("007/IDProducts", func([]byte) {})
	assert.False(t, first)

	_, first = r.Add("007/payment-status", func([]byte) {})
	assert.True(t, first)
}

func TestRegistryFanOutOrder(t *testing.T) {
	r := NewRegistry()

	var calls []string
	r.Add("t", func([]byte) { calls = append(calls, "a") })
	r.Add("t", func([]byte) { calls = append(calls, "b") })

	for _, h := range r.Handlers("t") {
		h(nil)
	}
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestRegistryRemoveByToken(t *testing.T) {
	r := NewRegistry()

	tokA, _ := r.Add("t", func([]byte) {})
	tokB, _ := r.Add("t", func([]byte) {})

	removed, last := r.Remove("t", tokA)
	assert.True(t, removed)
	assert.False(t, last)
	assert.Equal(t, 1, r.Count("t"))

	removed, last = r.Remove("t", tokB)
	assert.True(t, removed)
	assert.True(t, last)
	assert.Zero(t, r.Count("t"))
}

func TestRegistryRemoveUnknownToken(t *testing.T) {
	r := NewRegistry()
	r.Add("t", func([]byte) {})

	removed, last := r.Remove("t", Token(9999))
	assert.False(t, removed)
	assert.False(t, last)
	assert.Equal(t, 1, r.Count("t"))
}

func TestRegistryRemoveTopic(t *testing.T) {
	r := NewRegistry()
	r.Add("t", func([]byte) {})
	r.Add("t", func([]byte) {})

	assert.True(t, r.RemoveTopic("t"))
	assert.Nil(t, r.Handlers("t"))
	assert.False(t, r.RemoveTopic("t"))
}

func TestRegistryUnknownTopicYieldsNoHandlers(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Handlers("missing"))
}

func TestRegistryTopicsAndClear(t *testing.T) {
	r := NewRegistry()
	r.Add("a", func([]byte) {})
	r.Add("b", func([]byte) {})

	require.ElementsMatch(t, []string{"a", "b"}, r.Topics())

	r.Clear()
	assert.Empty(t, r.Topics())
}

func TestRegistryTokensAreUniqueAcrossTopics(t *testing.T) {
	r := NewRegistry()

	seen := make(map[Token]struct{})
	for _, topic := range []string{"a", "b", "a", "c"} {
		tok, _ := r.Add(topic, func([]byte) {})
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %d", tok)
		}
		seen[tok] = struct{}{}
	}
}
