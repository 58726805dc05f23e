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
	"strings"

	"github.com/charmbracelet/log"
)

// option provide an interface to do work on Table while it is being
// initialized.
type option[V any] interface {
	apply(t *Table[V])
}

type hashOption[V any] struct {
	hash HashFunc
}

func (op hashOption[V]) apply(t *Table[V]) {
	if op.hash != nil {
		t.hash = op.hash
	}
}

// WithHash is an option to specify the primary hash function to use for a
// Table[V]. The default is SDBM.
func WithHash[V any](hash HashFunc) option[V] {
	return hashOption[V]{hash}
}

// Allocator specifies an interface for allocating and releasing the memory
// used by a Table. The default allocator utilizes Go's builtin make() and
// strings.Clone() and allows the GC to reclaim memory.
//
// Every slice returned by AllocSlots and every key returned by CloneKey is
// handed back to FreeSlots and FreeKey respectively by Table.Close.
type Allocator[V any] interface {
	// AllocSlots should return a slice equivalent to make([]Slot[V], n), or
	// nil if the memory is not available.
	AllocSlots(n int) []Slot[V]

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []Slot[V])

	// CloneKey should return a copy of key that does not share memory with
	// it, or false if the memory is not available.
	CloneKey(key string) (string, bool)

	// FreeKey can optionally release the memory associated with a key
	// returned by CloneKey.
	FreeKey(key string)
}

type defaultAllocator[V any] struct{}

func (defaultAllocator[V]) AllocSlots(n int) []Slot[V] {
	return make([]Slot[V], n)
}

func (defaultAllocator[V]) FreeSlots(v []Slot[V]) {
}

func (defaultAllocator[V]) CloneKey(key string) (string, bool) {
	return strings.Clone(key), true
}

func (defaultAllocator[V]) FreeKey(key string) {
}

type allocatorOption[V any] struct {
	allocator Allocator[V]
}

func (op allocatorOption[V]) apply(t *Table[V]) {
	if op.allocator != nil {
		t.allocator = op.allocator
	}
}

// WithAllocator is an option for specify the Allocator to use for a
// Table[V].
func WithAllocator[V any](allocator Allocator[V]) option[V] {
	return allocatorOption[V]{allocator}
}

type loggerOption[V any] struct {
	logger *log.Logger
}

func (op loggerOption[V]) apply(t *Table[V]) {
	t.logger = op.logger
}

// WithLogger is an option to specify a logger which receives a warning
// whenever the Table rejects an operation because it is full, already
// initialized or out of memory. By default nothing is logged.
func WithLogger[V any](logger *log.Logger) option[V] {
	return loggerOption[V]{logger}
}
