// Copyright 2019 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package rlp implements the subset of Recursive Length Prefix encoding
// used to serialize trie nodes: byte strings and lists of byte strings/lists.
package rlp

import (
	"errors"
	"fmt"
	"io"
	"reflect"
)

// ErrNegativeBigInt is unused here but kept for interface parity with upstream rlp.
var ErrNegativeBigInt = errors.New("rlp: cannot encode negative big.Int")

// Encoder is implemented by types that know how to encode themselves as RLP.
// A rawNode writes its bytes out unwrapped because they are already a valid
// RLP-encoded value embedded inside a parent list.
type Encoder interface {
	EncodeRLP(io.Writer) error
}

// RawValue represents an already RLP-encoded value.
type RawValue []byte

func (r RawValue) EncodeRLP(w io.Writer) error {
	_, err := w.Write(r)
	return err
}

// Encode writes the RLP encoding of val to w.
func Encode(w io.Writer, val interface{}) error {
	b, err := EncodeToBytes(val)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// EncodeToBytes returns the RLP encoding of val.
func EncodeToBytes(val interface{}) ([]byte, error) {
	if val == nil {
		return []byte{0x80}, nil
	}
	if enc, ok := val.(Encoder); ok {
		var buf []byte
		w := &byteWriter{&buf}
		if err := enc.EncodeRLP(w); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return encodeReflect(reflect.ValueOf(val))
}

type byteWriter struct {
	buf *[]byte
}

func (w *byteWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

func encodeReflect(rv reflect.Value) ([]byte, error) {
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return []byte{0x80}, nil
		}
		return encodeReflect(rv.Elem())
	case reflect.Interface:
		if rv.IsNil() {
			return []byte{0x80}, nil
		}
		return EncodeToBytes(rv.Interface())
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return encodeBytes(toBytes(rv)), nil
		}
		items := make([][]byte, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			b, err := encodeReflect(rv.Index(i))
			if err != nil {
				return nil, err
			}
			items[i] = b
		}
		return encodeList(items), nil
	case reflect.Struct:
		var items [][]byte
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if t.Field(i).PkgPath != "" { // unexported
				continue
			}
			b, err := encodeReflect(rv.Field(i))
			if err != nil {
				return nil, err
			}
			items = append(items, b)
		}
		return encodeList(items), nil
	case reflect.String:
		return encodeBytes([]byte(rv.String())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return encodeUint(rv.Uint()), nil
	case reflect.Bool:
		if rv.Bool() {
			return []byte{0x01}, nil
		}
		return []byte{0x80}, nil
	default:
		return nil, fmt.Errorf("rlp: unsupported type %s", rv.Type())
	}
}

func toBytes(rv reflect.Value) []byte {
	if rv.Kind() == reflect.Slice {
		return rv.Bytes()
	}
	b := make([]byte, rv.Len())
	for i := range b {
		b[i] = byte(rv.Index(i).Uint())
	}
	return b
}

func encodeUint(i uint64) []byte {
	if i == 0 {
		return []byte{0x80}
	}
	var b [8]byte
	n := 8
	for n > 0 && (i>>uint((8-n)*8)) > 0 {
		n--
	}
	for j := 0; j < 8; j++ {
		b[7-j] = byte(i >> uint(8*j))
	}
	trimmed := b[8-countBytesNeeded(i):]
	return encodeBytes(trimmed)
}

func countBytesNeeded(i uint64) int {
	n := 0
	for i > 0 {
		n++
		i >>= 8
	}
	if n == 0 {
		n = 1
	}
	return n
}

func encodeBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	return append(encodeLength(len(b), 0x80), b...)
}

func encodeList(items [][]byte) []byte {
	total := 0
	for _, it := range items {
		total += len(it)
	}
	out := encodeLength(total, 0xc0)
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func encodeLength(l int, offset byte) []byte {
	if l < 56 {
		return []byte{offset + byte(l)}
	}
	lb := bigEndianMinimal(uint64(l))
	return append([]byte{offset + 55 + byte(len(lb))}, lb...)
}

func bigEndianMinimal(v uint64) []byte {
	var b [8]byte
	for j := 0; j < 8; j++ {
		b[7-j] = byte(v >> uint(8*j))
	}
	n := countBytesNeeded(v)
	return b[8-n:]
}

// Kind identifies the type of a decoded RLP value.
type Kind int

const (
	String Kind = iota
	List
)

// Split decomposes the leading RLP value in b, returning its kind, content
// (the value's payload, excluding its header), and the remaining bytes.
func Split(b []byte) (kind Kind, content []byte, rest []byte, err error) {
	if len(b) == 0 {
		return 0, nil, nil, io.ErrUnexpectedEOF
	}
	prefix := b[0]
	switch {
	case prefix < 0x80:
		return String, b[:1], b[1:], nil
	case prefix < 0xb8:
		size := int(prefix - 0x80)
		if len(b) < 1+size {
			return 0, nil, nil, io.ErrUnexpectedEOF
		}
		return String, b[1 : 1+size], b[1+size:], nil
	case prefix < 0xc0:
		lensize := int(prefix - 0xb7)
		if len(b) < 1+lensize {
			return 0, nil, nil, io.ErrUnexpectedEOF
		}
		size := decodeLength(b[1 : 1+lensize])
		start := 1 + lensize
		if len(b) < start+size {
			return 0, nil, nil, io.ErrUnexpectedEOF
		}
		return String, b[start : start+size], b[start+size:], nil
	case prefix < 0xf8:
		size := int(prefix - 0xc0)
		if len(b) < 1+size {
			return 0, nil, nil, io.ErrUnexpectedEOF
		}
		return List, b[1 : 1+size], b[1+size:], nil
	default:
		lensize := int(prefix - 0xf7)
		if len(b) < 1+lensize {
			return 0, nil, nil, io.ErrUnexpectedEOF
		}
		size := decodeLength(b[1 : 1+lensize])
		start := 1 + lensize
		if len(b) < start+size {
			return 0, nil, nil, io.ErrUnexpectedEOF
		}
		return List, b[start : start+size], b[start+size:], nil
	}
}

func decodeLength(b []byte) int {
	n := 0
	for _, c := range b {
		n = n<<8 | int(c)
	}
	return n
}

// SplitString is a convenience wrapper around Split for byte-string values.
func SplitString(b []byte) (content []byte, rest []byte, err error) {
	k, c, r, err := Split(b)
	if err != nil {
		return nil, nil, err
	}
	if k != String {
		return nil, nil, errors.New("rlp: expected string, got list")
	}
	return c, r, nil
}

// SplitList is a convenience wrapper around Split for list values.
func SplitList(b []byte) (content []byte, rest []byte, err error) {
	k, c, r, err := Split(b)
	if err != nil {
		return nil, nil, err
	}
	if k != List {
		return nil, nil, errors.New("rlp: expected list, got string")
	}
	return c, r, nil
}

// CountValues returns the number of top-level RLP values encoded in b.
func CountValues(b []byte) (int, error) {
	count := 0
	for len(b) > 0 {
		_, _, rest, err := Split(b)
		if err != nil {
			return 0, err
		}
		b = rest
		count++
	}
	return count, nil
}
