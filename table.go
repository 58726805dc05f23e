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

// package htab is a fixed-capacity, open-addressing hash table keyed by
// strings. It is used to intern strings: a key is mapped to a small integer
// slot index that stays valid for the lifetime of the table, and interning
// the same key again returns the same index. See [Knuth] The Art of Computer
// Programming, part 3 (6.4) and [Aho,Sethi,Ullman] Compilers: Principles,
// Techniques and Tools, 1986.
//
// # Layout
//
// A Table has capacity+1 slots where capacity is a prime >= 3. Slot 0 is
// never used: every slot stores the home index of its key in the range
// [1,capacity] as a tag, and a tag of zero marks an empty slot. This lets a
// single integer act as both the occupancy flag and a cheap pre-filter that
// avoids most string comparisons. It also means the slot index 0 can be
// returned as an unambiguous failure value (NotFound).
//
// # Hashing
//
// The primary hash defaults to sdbm (see SDBM), which empirically produces
// half the collisions of djb2 on short strings. The home index of a key is
// hash(key) % capacity, with 0 bumped to 1. On collision the table uses
// double hashing: the step is 1 + home % (capacity-2), and the probe walks
// backwards by step, wrapping within [1,capacity]. Because capacity is prime
// every step is coprime with it, so the probe visits every slot exactly once
// before arriving back at the home index. See probeSeq.
//
// # Capacity
//
// The table never grows. Once every slot is filled, interning a new key
// fails with ErrTableFull; keys already present are still found. There is no
// deletion. Callers that outgrow a table should Close it and create a larger
// one.
//
// # Ownership
//
// The table copies every key it stores (see Allocator.CloneKey), so callers
// may reuse the memory behind a key as soon as Intern returns. Close releases
// every stored key and the slot array.
package htab

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unsafe"

	"github.com/charmbracelet/log"
)

const (
	debug = false

	// NotFound is the slot index returned when an operation fails. It is
	// never assigned to a key.
	NotFound uint32 = 0

	minCapacity = 3
)

var (
	// ErrInvalidArgument is returned for operations on a nil, uninitialized
	// or closed table, for a nil key, and for Init on a live table.
	ErrInvalidArgument = errors.New("htab: invalid argument")
	// ErrOutOfMemory is returned when the Allocator fails to provide slots
	// or a copy of a key.
	ErrOutOfMemory = errors.New("htab: out of memory")
	// ErrTableFull is returned when a new key is interned into a table
	// whose slots are all filled. It indicates the table was created too
	// small.
	ErrTableFull = errors.New("htab: table full")
	// ErrProbeExhausted is returned when the probe sequence returns to the
	// home index without finding the key or an empty slot while the table
	// still reports free slots. It indicates a corrupt table.
	ErrProbeExhausted = errors.New("htab: probe sequence exhausted")
)

// Slot holds an interned key and its value.
type Slot[V any] struct {
	// tag is the home index of key, in [1,capacity]. Zero means the slot is
	// empty.
	tag   uint32
	key   string
	value V
}

func (s *Slot[V]) used() bool {
	return s.tag != 0
}

// Stats describes the occupancy of a Table and the collisions seen while
// interning into it.
type Stats struct {
	Capacity int `yaml:"capacity"`
	Filled   int `yaml:"filled"`
	// Collisions is the number of Intern calls whose home slot held a
	// different key.
	Collisions uint64 `yaml:"collisions"`
	// Probes is the number of double hashing steps taken.
	Probes uint64 `yaml:"probes"`
}

// Table is a fixed-capacity string interning table. Each interned key is
// assigned a non-zero slot index which also addresses an optional value of
// type V. Use Table[struct{}] for a plain string set.
//
// The zero value is an uninitialized table: it must be initialized with Init
// (or created with New) before use, and all operations on it fail with
// ErrInvalidArgument rather than panicking.
//
// A Table is NOT goroutine-safe.
type Table[V any] struct {
	// The hash function applied to keys.
	hash HashFunc
	// The allocator to use for slots and key copies.
	allocator Allocator[V]
	// Optional logger for warnings. Nil disables logging.
	logger *log.Logger
	// slots is capacity+1 in length. slots[0] is never occupied. Nil when
	// the table is uninitialized or closed.
	slots []Slot[V]
	// The number of usable slots. Always prime when the table is live.
	capacity uint32
	// The number of occupied slots.
	filled uint32

	collisions uint64
	probes     uint64
}

// New constructs a Table able to hold at least requestedSize keys. The
// actual capacity is the smallest odd prime >= requestedSize|1 (and at least
// 3).
func New[V any](requestedSize uint32, options ...option[V]) (*Table[V], error) {
	t := &Table[V]{}
	if err := t.Init(requestedSize, options...); err != nil {
		return nil, err
	}
	return t, nil
}

// Init initializes an uninitialized or closed Table. It returns
// ErrInvalidArgument without modifying the table if the table is live, and
// ErrOutOfMemory if the slots could not be allocated, in which case the table
// remains uninitialized.
func (t *Table[V]) Init(requestedSize uint32, options ...option[V]) error {
	if t == nil {
		return fmt.Errorf("htab: init of nil table: %w", ErrInvalidArgument)
	}

	n := Table[V]{
		hash:      SDBM,
		allocator: defaultAllocator[V]{},
	}
	for _, op := range options {
		op.apply(&n)
	}

	if t.slots != nil {
		n.warn("init called on a live table", "capacity", t.capacity, "filled", t.filled)
		return fmt.Errorf("htab: init of live table (capacity %d): %w", t.capacity, ErrInvalidArgument)
	}

	capacity, ok := nextPrime(requestedSize)
	if !ok {
		return fmt.Errorf("htab: no prime capacity >= %d: %w", requestedSize, ErrInvalidArgument)
	}

	size := int(capacity) + 1
	slots := n.allocator.AllocSlots(size)
	if len(slots) < size {
		if slots != nil {
			n.allocator.FreeSlots(slots)
		}
		n.warn("could not allocate space for hash table", "capacity", capacity)
		return fmt.Errorf("htab: allocating %d slots: %w", size, ErrOutOfMemory)
	}
	slots = slots[:size]
	clear(slots)

	n.slots = slots
	n.capacity = capacity
	*t = n

	if debug {
		fmt.Printf("init: requested=%d capacity=%d\n", requestedSize, capacity)
	}
	t.checkInvariants()
	return nil
}

// Close releases every stored key and the slots back to the table's
// Allocator and returns the table to the uninitialized state, after which
// Init may be called again. Close is idempotent and is a noop on a nil or
// uninitialized table.
func (t *Table[V]) Close() {
	if t == nil || t.slots == nil {
		return
	}
	for i := range t.slots {
		if s := &t.slots[i]; s.used() {
			t.allocator.FreeKey(s.key)
		}
	}
	t.allocator.FreeSlots(t.slots)

	t.slots = nil
	t.capacity = 0
	t.filled = 0
	t.collisions = 0
	t.probes = 0
	t.allocator = nil
}

// Intern returns the slot index holding key, inserting a copy of key if it
// is not already present. The returned index is non-zero and remains valid
// until Close. On failure Intern returns NotFound and an error wrapping one
// of ErrInvalidArgument, ErrTableFull, ErrProbeExhausted or ErrOutOfMemory;
// the table is left unmodified.
func (t *Table[V]) Intern(key string) (uint32, error) {
	if t == nil || t.slots == nil {
		return NotFound, fmt.Errorf("htab: intern into uninitialized table: %w", ErrInvalidArgument)
	}
	return t.intern(key)
}

// InternBytes is like Intern but takes the key as a byte slice. A nil slice
// is rejected with ErrInvalidArgument; an empty non-nil slice interns the
// empty string. The slice is not retained.
func (t *Table[V]) InternBytes(key []byte) (uint32, error) {
	if key == nil {
		return NotFound, fmt.Errorf("htab: intern of nil key: %w", ErrInvalidArgument)
	}
	if t == nil || t.slots == nil {
		return NotFound, fmt.Errorf("htab: intern into uninitialized table: %w", ErrInvalidArgument)
	}
	// The string aliases key. It is only compared against and hashed; the
	// copy stored on insertion is made by CloneKey.
	return t.intern(unsafe.String(unsafe.SliceData(key), len(key)))
}

func (t *Table[V]) intern(key string) (uint32, error) {
	home := t.home(key)
	i, found, ok := t.find(key, home)
	switch {
	case found:
		return i, nil
	case !ok:
		if t.filled >= t.capacity {
			return NotFound, t.full()
		}
		t.warn("probe sequence exhausted", "capacity", t.capacity, "filled", t.filled, "key", key)
		return NotFound, fmt.Errorf("htab: capacity=%d filled=%d: %w", t.capacity, t.filled, ErrProbeExhausted)
	}
	return t.insert(i, home, key)
}

// find returns the index of the slot holding key, or of the first empty slot
// in the probe sequence starting at home. ok is false if the probe sequence
// came back to home without finding either.
func (t *Table[V]) find(key string, home uint32) (i uint32, found, ok bool) {
	seq := makeProbeSeq(home, t.capacity)
	if debug {
		fmt.Printf("find(%q): %s\n", key, seq)
	}

	s := &t.slots[seq.index]
	if !s.used() {
		return seq.index, false, true
	}
	if s.tag == home && s.key == key {
		return seq.index, true, true
	}
	t.collisions++

	for {
		seq = seq.next()
		if seq.index == home {
			if debug {
				fmt.Printf("find(exhausted): %s\n", seq)
			}
			return NotFound, false, false
		}
		t.probes++

		s = &t.slots[seq.index]
		if debug {
			fmt.Printf("find(probing): index=%d tag=%d key=%q\n", seq.index, s.tag, s.key)
		}
		if !s.used() {
			return seq.index, false, true
		}
		if s.tag == home && s.key == key {
			return seq.index, true, true
		}
	}
}

// insert stores a copy of key with tag home in the empty slot i.
func (t *Table[V]) insert(i, home uint32, key string) (uint32, error) {
	if t.filled >= t.capacity {
		return NotFound, t.full()
	}

	owned, ok := t.allocator.CloneKey(key)
	if !ok {
		t.warn("could not duplicate string for hash table", "capacity", t.capacity, "filled", t.filled)
		return NotFound, fmt.Errorf("htab: copying %d byte key: %w", len(key), ErrOutOfMemory)
	}

	t.slots[i] = Slot[V]{tag: home, key: owned}
	t.filled++

	if debug {
		fmt.Printf("insert(%q): index=%d tag=%d filled=%d\n", key, i, home, t.filled)
	}
	t.checkInvariants()
	return i, nil
}

func (t *Table[V]) full() error {
	t.warn("hash table is full", "capacity", t.capacity)
	return fmt.Errorf("htab: %d entries: %w", t.capacity, ErrTableFull)
}

// home returns the home index of key in [1,capacity].
func (t *Table[V]) home(key string) uint32 {
	h := t.hash(key)
	if h == 0 {
		h = 1
	}
	h %= t.capacity
	if h == 0 {
		h = 1
	}
	return h
}

// Key returns the key stored in slot i. It returns false if i is NotFound,
// out of range or refers to an empty slot.
func (t *Table[V]) Key(i uint32) (string, bool) {
	s := t.slot(i)
	if s == nil {
		return "", false
	}
	return s.key, true
}

// Value returns the value stored in slot i. It returns false if i does not
// refer to an occupied slot.
func (t *Table[V]) Value(i uint32) (value V, ok bool) {
	s := t.slot(i)
	if s == nil {
		return value, false
	}
	return s.value, true
}

// SetValue overwrites the value stored in slot i. It returns false, without
// modifying the table, if i does not refer to an occupied slot.
func (t *Table[V]) SetValue(i uint32, value V) bool {
	s := t.slot(i)
	if s == nil {
		return false
	}
	s.value = value
	return true
}

func (t *Table[V]) slot(i uint32) *Slot[V] {
	if t == nil || i == NotFound || uint64(i) >= uint64(len(t.slots)) {
		return nil
	}
	s := &t.slots[i]
	if !s.used() {
		return nil
	}
	return s
}

// Len returns the number of keys in the table.
func (t *Table[V]) Len() int {
	if t == nil {
		return 0
	}
	return int(t.filled)
}

// Cap returns the number of keys the table can hold, or 0 if the table is
// uninitialized.
func (t *Table[V]) Cap() int {
	if t == nil {
		return 0
	}
	return int(t.capacity)
}

// Stats returns the occupancy and collision counters of the table.
func (t *Table[V]) Stats() Stats {
	if t == nil {
		return Stats{}
	}
	return Stats{
		Capacity:   int(t.capacity),
		Filled:     int(t.filled),
		Collisions: t.collisions,
		Probes:     t.probes,
	}
}

func (t *Table[V]) warn(msg string, keyvals ...interface{}) {
	if t.logger != nil {
		t.logger.Warn(msg, keyvals...)
	}
}

func (t *Table[V]) checkInvariants() {
	if invariants {
		if t.slots == nil {
			if t.capacity != 0 || t.filled != 0 {
				panic(fmt.Sprintf("invariant failed: closed table has capacity=%d filled=%d", t.capacity, t.filled))
			}
			return
		}
		if t.capacity < minCapacity || !isPrime(t.capacity) {
			panic(fmt.Sprintf("invariant failed: capacity %d is not an odd prime >= %d", t.capacity, minCapacity))
		}
		if len(t.slots) != int(t.capacity)+1 {
			panic(fmt.Sprintf("invariant failed: %d slots for capacity %d", len(t.slots), t.capacity))
		}
		if t.slots[0].used() {
			panic(fmt.Sprintf("invariant failed: slot 0 is occupied\n%s", t.debugString()))
		}

		// find updates the counters, which must not be perturbed by checking.
		collisions, probes := t.collisions, t.probes
		defer func() {
			t.collisions, t.probes = collisions, probes
		}()

		// For every occupied slot, verify the tag matches the key and that
		// the key is found at this slot.
		var filled uint32
		for i := uint32(1); i <= t.capacity; i++ {
			s := &t.slots[i]
			if !s.used() {
				continue
			}
			filled++
			if home := t.home(s.key); s.tag != home {
				panic(fmt.Sprintf("invariant failed: slot(%d): %q has tag %d, expected %d\n%s",
					i, s.key, s.tag, home, t.debugString()))
			}
			if j, found, _ := t.find(s.key, s.tag); !found || j != i {
				panic(fmt.Sprintf("invariant failed: slot(%d): %q found at %d\n%s",
					i, s.key, j, t.debugString()))
			}
		}
		if filled != t.filled {
			panic(fmt.Sprintf("invariant failed: found %d filled slots, but filled count is %d\n%s",
				filled, t.filled, t.debugString()))
		}
	}
}

func (t *Table[V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  filled=%d\n", t.capacity, t.filled)
	for i := range t.slots {
		s := &t.slots[i]
		switch {
		case i == 0:
			fmt.Fprintf(&buf, "  %4d: sentinel [tag=%d]\n", i, s.tag)
		case !s.used():
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		default:
			fmt.Fprintf(&buf, "  %4d: %q [tag=%d home=%d]\n", i, s.key, s.tag, t.home(s.key))
		}
	}
	return buf.String()
}

// probeSeq maintains the state for a double hashing probe sequence. The
// sequence starts at the home index h in [1,capacity] and repeatedly steps
// backwards by
//
//	step := 1 + h % (capacity-2)
//
// wrapping around within [1,capacity]. Index 0 is never produced.
//
// The step is in [1,capacity-2]. Since capacity is prime, step and capacity
// are coprime and stepping visits all capacity indices exactly once before
// returning to h. Termination of find relies on this.
type probeSeq struct {
	capacity uint32
	step     uint32
	index    uint32
}

func makeProbeSeq(home, capacity uint32) probeSeq {
	return probeSeq{
		capacity: capacity,
		step:     1 + home%(capacity-2),
		index:    home,
	}
}

func (s probeSeq) next() probeSeq {
	if s.index <= s.step {
		s.index = s.capacity + s.index - s.step
	} else {
		s.index -= s.step
	}
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("capacity=%d step=%d index=%d", s.capacity, s.step, s.index)
}

// isPrime reports whether n is prime. Only odd n are passed. Trial division
// is adequate since it only runs in Init.
func isPrime(n uint32) bool {
	if n < minCapacity {
		return false
	}
	for d := uint64(3); d*d <= uint64(n); d += 2 {
		if uint64(n)%d == 0 {
			return false
		}
	}
	return true
}

// nextPrime returns the smallest prime >= n|1 that is at least minCapacity.
// It returns false if no such prime fits in a uint32.
func nextPrime(n uint32) (uint32, bool) {
	n |= 1
	for !isPrime(n) {
		if n > math.MaxUint32-2 {
			return 0, false
		}
		n += 2
	}
	return n, true
}
