// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package correlation

import (
	"sort"
	"strings"
)

const keySetVersion = "2"

// KeySet is an unordered collection of keys, unique by correlation set id.
// Keys are kept sorted by set id, which is the order of the canonical form
// and of subset enumeration.
type KeySet struct {
	keys []Key
}

func NewKeySet(keys ...Key) KeySet {
	var s KeySet
	for _, k := range keys {
		s = s.Add(k)
	}
	return s
}

// Add returns a key set with k added. A key of an already present set id is replaced.
func (s KeySet) Add(k Key) KeySet {
	keys := make([]Key, 0, len(s.keys)+1)
	for _, existing := range s.keys {
		if existing.SetId != k.SetId {
			keys = append(keys, existing)
		}
	}
	keys = append(keys, k)
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].SetId < keys[j].SetId
	})
	return KeySet{keys: keys}
}

// Keys returns a copy of the keys, ordered by set id
func (s KeySet) Keys() []Key {
	return append([]Key(nil), s.keys...)
}

func (s KeySet) Len() int {
	return len(s.keys)
}

func (s KeySet) IsEmpty() bool {
	return len(s.keys) == 0
}

// IsOpaque is true when the opaque key is the only key of the set
func (s KeySet) IsOpaque() bool {
	return len(s.keys) == 1 && s.keys[0].IsOpaque()
}

func (s KeySet) Contains(k Key) bool {
	for _, existing := range s.keys {
		if existing.Equal(k) {
			return true
		}
	}
	return false
}

// ContainsAll is true when every key of other is in s
func (s KeySet) ContainsAll(other KeySet) bool {
	for _, k := range other.keys {
		if !s.Contains(k) {
			return false
		}
	}
	return true
}

func (s KeySet) Equal(other KeySet) bool {
	return len(s.keys) == len(other.keys) && s.ContainsAll(other)
}

// IsRoutableTo reports whether a message carrying s can be accepted by a route registered
// with candidate. Every candidate key must be matched. With allRoute, an empty message key set
// is also routable to the opaque candidate.
func (s KeySet) IsRoutableTo(candidate KeySet, allRoute bool) bool {
	if s.ContainsAll(candidate) {
		return true
	}
	return allRoute && candidate.IsOpaque() && s.IsEmpty()
}

// FindSubSets enumerates every non-empty subset, in bit pattern order over the keys sorted
// by set id. When the opaque key is present together with explicit keys, only the explicit
// keys are expanded. An empty key set has the empty set as its only subset.
func (s KeySet) FindSubSets() []KeySet {
	explicit := s.keys
	if len(s.keys) > 1 {
		explicit = make([]Key, 0, len(s.keys))
		for _, k := range s.keys {
			if !k.IsOpaque() {
				explicit = append(explicit, k)
			}
		}
	}

	var subsets []KeySet
	for pattern := 1; pattern < 1<<len(explicit); pattern++ {
		var keys []Key
		for i, k := range explicit {
			if pattern&(1<<i) != 0 {
				keys = append(keys, k)
			}
		}
		subsets = append(subsets, KeySet{keys: keys})
	}
	if len(subsets) == 0 {
		subsets = append(subsets, KeySet{})
	}
	return subsets
}

// CanonicalForm encodes the set as @2[key1],[key2] where a ] inside a key is doubled.
// Optional keys are followed by a ?
func (s KeySet) CanonicalForm() string {
	var b strings.Builder
	b.WriteString("@")
	b.WriteString(keySetVersion)
	for i, k := range s.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		b.WriteString(strings.ReplaceAll(k.CanonicalForm(), "]", "]]"))
		b.WriteByte(']')
		if k.Optional {
			b.WriteByte('?')
		}
	}
	return b.String()
}

func (s KeySet) String() string {
	return s.CanonicalForm()
}

type parserState int

const (
	stateInitial parserState = iota
	stateVersion
	stateInKey
	stateAfterRightBracket
	stateBetweenKeys
)

// ParseKeySet is the reverse of CanonicalForm. A blank string is the empty set,
// and a string without the leading @ is the legacy form holding one bare key.
func ParseKeySet(canonical string) KeySet {
	var s KeySet
	if strings.TrimSpace(canonical) == "" {
		return s
	}
	if !strings.HasPrefix(canonical, "@") {
		return s.Add(ParseKey(canonical))
	}

	state := stateInitial
	var buf strings.Builder
	flush := func(optional bool) {
		if strings.TrimSpace(buf.String()) != "" {
			k := ParseKey(buf.String())
			k.Optional = optional
			s = s.Add(k)
		}
		buf.Reset()
	}

	for i := 0; i < len(canonical); i++ {
		ch := canonical[i]
		switch state {
		case stateInitial:
			// the leading @
			state = stateVersion
		case stateVersion:
			if ch == '[' {
				buf.Reset()
				state = stateInKey
			} else {
				buf.WriteByte(ch)
			}
		case stateInKey:
			if ch == ']' {
				state = stateAfterRightBracket
			} else {
				buf.WriteByte(ch)
			}
		case stateAfterRightBracket:
			switch ch {
			case ']':
				buf.WriteByte(ch)
				state = stateInKey
			case ',':
				flush(false)
				state = stateBetweenKeys
			case '?':
				flush(true)
				state = stateBetweenKeys
			}
		case stateBetweenKeys:
			if ch == '[' {
				state = stateInKey
			}
		}
	}
	if state == stateInKey || state == stateAfterRightBracket {
		flush(false)
	}
	return s
}
