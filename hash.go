// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package htab

import (
	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// HashFunc computes the primary hash of a key. The Table reduces it modulo
// its capacity. A hash of 0 is treated as 1.
type HashFunc func(key string) uint32

// SDBM is the sdbm hash: every byte is folded in as
//
//	h = c + (h << 6) + (h << 16) - h
//
// See http://www.cse.yorku.ca/~oz/hash.html. Bytes are sign extended before
// being added, so keys containing bytes >= 0x80 hash as they would with a
// signed C char.
func SDBM(key string) uint32 {
	var h uint32
	for i := 0; i < len(key); i++ {
		c := uint32(int32(int8(key[i])))
		h = c + (h << 6) + (h << 16) - h
	}
	return h
}

// DJB2 is Bernstein's djb2 hash (h = h*33 + c, seeded with 5381).
func DJB2(key string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(key); i++ {
		h = (h << 5) + h + uint32(key[i])
	}
	return h
}

// XXHash is the 64-bit xxHash of key folded to 32 bits.
func XXHash(key string) uint32 {
	return fold(xxhash.Sum64String(key))
}

// XXH3 is the 64-bit XXH3 hash of key folded to 32 bits.
func XXH3(key string) uint32 {
	return fold(xxh3.HashString(key))
}

func fold(h uint64) uint32 {
	return uint32(h ^ (h >> 32))
}
