// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package correlation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyCanonicalForm(t *testing.T) {
	assert.Equal(t, "1~a~b", NewKey("1", "a", "b").CanonicalForm())
	assert.Equal(t, "order~", NewKey("order").CanonicalForm())
	assert.Equal(t, "1~x~~y~z", NewKey("1", "x~y", "z").CanonicalForm())
	assert.Equal(t, "-1~", NewOpaqueKey().CanonicalForm())
}

func TestParseKey(t *testing.T) {
	k := ParseKey("1~a~b")
	assert.Equal(t, "1", k.SetId)
	assert.Equal(t, []string{"a", "b"}, k.Values)

	k = ParseKey("order~")
	assert.Equal(t, "order", k.SetId)
	assert.Empty(t, k.Values)

	k = ParseKey("order")
	assert.Equal(t, "order", k.SetId)
	assert.Empty(t, k.Values)

	k = ParseKey("1~x~~y~z")
	assert.Equal(t, []string{"x~y", "z"}, k.Values)

	k = ParseKey("1~a~")
	assert.Equal(t, []string{"a", ""}, k.Values)
}

func TestKeyEquality(t *testing.T) {
	assert.True(t, NewKey("1", "a").Equal(NewKey("1", "a")))
	assert.False(t, NewKey("1", "a").Equal(NewKey("2", "a")))
	assert.False(t, NewKey("1", "a", "b").Equal(NewKey("1", "b", "a")))
	assert.False(t, NewKey("1", "a").Equal(NewKey("1", "a", "b")))

	optional := NewKey("1", "a")
	optional.Optional = true
	assert.True(t, optional.Equal(NewKey("1", "a")))
}

func TestKeyRoundTrip(t *testing.T) {
	fixed := []Key{
		NewKey("1"),
		NewKey("1", "a"),
		NewKey("orderId", "x~y"),
		NewKey("orderId", "~~middle~~x", "b"),
		NewKey("s", "", "b"),
		NewOpaqueKey("4ac1"),
	}
	for _, k := range fixed {
		assert.True(t, k.Equal(ParseKey(k.CanonicalForm())), k.CanonicalForm())
	}

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		k := randomKey(r)
		parsed := ParseKey(k.CanonicalForm())
		assert.True(t, k.Equal(parsed), "key %v parsed as %v", k.Values, parsed.Values)
	}
}

// randomKey avoids values starting or ending with ~ and the single empty value,
// which the encoding cannot tell apart from other keys
func randomKey(r *rand.Rand) Key {
	const alphabet = "ab~]c,"
	setId := string(rune('a' + r.Intn(5)))
	n := r.Intn(4)
	var values []string
	for i := 0; i < n; i++ {
		length := 1 + r.Intn(6)
		b := make([]byte, length)
		for j := range b {
			b[j] = alphabet[r.Intn(len(alphabet))]
		}
		b[0] = 'v'
		b[len(b)-1] = 'v'
		values = append(values, string(b))
	}
	return NewKey(setId, values...)
}
