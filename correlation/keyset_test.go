// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package correlation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeySetCanonicalForm(t *testing.T) {
	s := NewKeySet(NewKey("2", "b", "c"), NewKey("1", "a", "b"))
	assert.Equal(t, "@2[1~a~b],[2~b~c]", s.CanonicalForm())

	assert.Equal(t, "@2", NewKeySet().CanonicalForm())

	s = NewKeySet(NewKey("1", "a]b"))
	assert.Equal(t, "@2[1~a]]b]", s.CanonicalForm())
}

func TestKeySetAddReplacesSameSetId(t *testing.T) {
	s := NewKeySet(NewKey("1", "a"), NewKey("1", "b"))
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains(NewKey("1", "b")))
	assert.False(t, s.Contains(NewKey("1", "a")))
}

func TestParseKeySet(t *testing.T) {
	s := ParseKeySet("@2[1~a~b],[2~b~c]")
	assert.True(t, s.Equal(NewKeySet(NewKey("1", "a", "b"), NewKey("2", "b", "c"))))

	s = ParseKeySet("@2[1~a]]b]")
	assert.True(t, s.Equal(NewKeySet(NewKey("1", "a]b"))))

	assert.True(t, ParseKeySet("").IsEmpty())
	assert.True(t, ParseKeySet("   ").IsEmpty())
	assert.True(t, ParseKeySet("@2").IsEmpty())

	legacy := ParseKeySet("1~a~b")
	assert.True(t, legacy.Equal(NewKeySet(NewKey("1", "a", "b"))))

	optional := ParseKeySet("@2[1~key1],[2~key2~key3]?")
	assert.Equal(t, 2, optional.Len())
	assert.False(t, optional.Keys()[0].Optional)
	assert.True(t, optional.Keys()[1].Optional)
	assert.Equal(t, "@2[1~key1],[2~key2~key3]?", optional.CanonicalForm())
}

func TestKeySetRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		var keys []Key
		for j := 0; j < r.Intn(5); j++ {
			keys = append(keys, randomKey(r))
		}
		s := NewKeySet(keys...)
		parsed := ParseKeySet(s.CanonicalForm())
		assert.True(t, s.Equal(parsed), "%v parsed as %v", s, parsed)
		assert.Equal(t, s.CanonicalForm(), parsed.CanonicalForm())
	}
}

func TestKeySetEqualityIsOrderIndependent(t *testing.T) {
	a := NewKeySet(NewKey("1", "a"), NewKey("2", "b"))
	b := NewKeySet(NewKey("2", "b"), NewKey("1", "a"))
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.CanonicalForm(), b.CanonicalForm())
}

func TestFindSubSets(t *testing.T) {
	assert.Equal(t, []string{"@2"}, canonicalForms(NewKeySet().FindSubSets()))

	s := ParseKeySet("@2[1~a],[2~b],[3~c]")
	assert.Equal(t, []string{
		"@2[1~a]",
		"@2[2~b]",
		"@2[1~a],[2~b]",
		"@2[3~c]",
		"@2[1~a],[3~c]",
		"@2[2~b],[3~c]",
		"@2[1~a],[2~b],[3~c]",
	}, canonicalForms(s.FindSubSets()))

	assert.Len(t, ParseKeySet("@2[1~key1],[2~key2~key3]?").FindSubSets(), 3)
}

func TestFindSubSetsExcludesOpaqueWithExplicitKeys(t *testing.T) {
	s := NewKeySet(NewOpaqueKey("x"), NewKey("1", "a"), NewKey("2", "b"))
	subsets := s.FindSubSets()
	assert.Len(t, subsets, 3)
	for _, subset := range subsets {
		assert.False(t, subset.Contains(NewOpaqueKey("x")))
	}

	opaqueOnly := NewKeySet(NewOpaqueKey("x"))
	assert.Equal(t, []string{"@2[-1~x]"}, canonicalForms(opaqueOnly.FindSubSets()))
}

func TestIsRoutableTo(t *testing.T) {
	empty := NewKeySet()
	opaque := NewKeySet(NewOpaqueKey())
	ab := NewKeySet(NewKey("1", "a"), NewKey("2", "b"))
	a := NewKeySet(NewKey("1", "a"))

	assert.True(t, empty.IsRoutableTo(empty, false))
	assert.True(t, empty.IsRoutableTo(empty, true))

	assert.False(t, empty.IsRoutableTo(opaque, false))
	assert.True(t, empty.IsRoutableTo(opaque, true))

	assert.True(t, ab.IsRoutableTo(a, false))
	assert.False(t, a.IsRoutableTo(ab, false))
	assert.False(t, a.IsRoutableTo(ab, true))
	assert.False(t, ab.IsRoutableTo(opaque, true))
}

func TestIsRoutableToProperty(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		var keys []Key
		for j := 0; j < 1+r.Intn(4); j++ {
			keys = append(keys, randomKey(r))
		}
		message := NewKeySet(keys...)
		for _, subset := range message.FindSubSets() {
			assert.True(t, message.IsRoutableTo(subset, false))
		}

		missing := NewKey("missing", "x")
		candidate := NewKeySet(append(keys, missing)...)
		assert.False(t, message.IsRoutableTo(candidate, false))
		assert.False(t, message.IsRoutableTo(candidate, true))
	}
}

func canonicalForms(sets []KeySet) []string {
	var out []string
	for _, s := range sets {
		out = append(out, s.CanonicalForm())
	}
	return out
}
