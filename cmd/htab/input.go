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

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// maxLineSize is the longest line htab accepts.
const maxLineSize = 1 << 20

// openInput opens the named input. "-" is stdin. Files ending in .zst are
// decompressed while reading.
func openInput(name string, stdin io.Reader) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(stdin), nil
	}

	file, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	if !strings.HasSuffix(name, ".zst") {
		return file, nil
	}

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("could not create zstd reader: %w", err)
	}
	return &zstdFile{dec: zstdReader, file: file}, nil
}

type zstdFile struct {
	dec  *zstd.Decoder
	file *os.File
}

func (z *zstdFile) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdFile) Close() error {
	z.dec.Close()
	return z.file.Close()
}

// eachLine calls fn with every line of every input. With no inputs stdin is
// read. The slice passed to fn is only valid until fn returns.
func eachLine(inputs []string, stdin io.Reader, fn func(line []byte) error) error {
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}
	for _, name := range inputs {
		if err := readLines(name, stdin, fn); err != nil {
			return err
		}
	}
	return nil
}

func readLines(name string, stdin io.Reader, fn func(line []byte) error) error {
	r, err := openInput(name, stdin)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer func() { _ = r.Close() }()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := fn(scanner.Bytes()); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
