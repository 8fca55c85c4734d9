// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

// Package correlation implements correlation keys and key sets, the values
// inbound messages are routed to waiting receives by.
package correlation

import (
	"strings"
)

// OpaqueSetId is the reserved correlation set id of the opaque key.
const OpaqueSetId = "-1"

const keySeparator = '~'

// Key is the concrete values of one correlation set.
// Equality is structural: the set id plus all values positionally.
type Key struct {
	SetId  string
	Values []string
	// Optional keys take part in join style matching.
	// It is not part of the key's identity
	Optional bool
}

func NewKey(setId string, values ...string) Key {
	return Key{SetId: setId, Values: values}
}

// NewOpaqueKey returns a key in the reserved opaque set
func NewOpaqueKey(values ...string) Key {
	return Key{SetId: OpaqueSetId, Values: values}
}

func (k Key) IsOpaque() bool {
	return k.SetId == OpaqueSetId
}

func (k Key) Equal(other Key) bool {
	if k.SetId != other.SetId || len(k.Values) != len(other.Values) {
		return false
	}
	for i := range k.Values {
		if k.Values[i] != other.Values[i] {
			return false
		}
	}
	return true
}

// CanonicalForm encodes the key as setId~v1~v2, a literal ~ inside a value is doubled.
// A key without values encodes as setId~
func (k Key) CanonicalForm() string {
	var b strings.Builder
	b.WriteString(k.SetId)
	b.WriteByte(keySeparator)
	for i, v := range k.Values {
		if i > 0 {
			b.WriteByte(keySeparator)
		}
		b.WriteString(strings.ReplaceAll(v, "~", "~~"))
	}
	return b.String()
}

func (k Key) String() string {
	return k.CanonicalForm()
}

// ParseKey is the reverse of CanonicalForm.
// Everything before the first ~ is the set id, a string without any ~ is a set id without values.
func ParseKey(canonical string) Key {
	idx := strings.IndexByte(canonical, keySeparator)
	if idx < 0 {
		return Key{SetId: canonical}
	}
	key := Key{SetId: canonical[:idx]}
	rest := canonical[idx+1:]
	if rest == "" {
		return key
	}

	var current strings.Builder
	for i := 0; i < len(rest); i++ {
		ch := rest[i]
		if ch != keySeparator {
			current.WriteByte(ch)
			continue
		}
		if i+1 < len(rest) && rest[i+1] == keySeparator {
			current.WriteByte(keySeparator)
			i++
			continue
		}
		key.Values = append(key.Values, current.String())
		current.Reset()
	}
	key.Values = append(key.Values, current.String())
	return key
}
