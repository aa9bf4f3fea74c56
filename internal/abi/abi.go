// Package abi holds the flat calling convention shared by the host
// modules: function export and moving data in and out of guest memory.
package abi

import (
	"encoding/binary"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Exporter provides a chainable API for exporting Go functions to a guest.
// Functions take and return only integers, optionally preceded by a
// context.Context and the calling api.Module.
type Exporter struct {
	b wazero.HostModuleBuilder
}

// NewExporter wraps a host module builder.
func NewExporter(b wazero.HostModuleBuilder) *Exporter {
	return &Exporter{b: b}
}

// Export registers fn under name.
func (e *Exporter) Export(name string, fn any) *Exporter {
	e.b.NewFunctionBuilder().WithFunc(fn).Export(name)
	return e
}

// ReadString copies n bytes at ptr out of guest memory.
func ReadString(m api.Module, ptr, n uint32) (string, bool) {
	p, ok := Read(m, ptr, n)
	if !ok {
		return "", false
	}
	return string(p), true
}

// Read returns a view of n bytes of guest memory at ptr. The view is only
// valid until the guest runs again.
func Read(m api.Module, ptr, n uint32) ([]byte, bool) {
	mem := m.Memory()
	if mem == nil {
		return nil, false
	}
	return mem.Read(ptr, n)
}

// Write copies p into guest memory at ptr.
func Write(m api.Module, ptr uint32, p []byte) bool {
	mem := m.Memory()
	if mem == nil {
		return false
	}
	return mem.Write(ptr, p)
}

// EventSize is the size of an event record in guest memory.
const EventSize = 16

// EventRecord is the guest view of a polled event: four little-endian
// 32-bit words.
type EventRecord struct {
	Handle uint32
	Kind   uint32
	Arg0   uint32
	Arg1   uint32
}

// Encode packs the record the way the guest reads it.
func (r EventRecord) Encode() [EventSize]byte {
	var b [EventSize]byte
	binary.LittleEndian.PutUint32(b[0:], r.Handle)
	binary.LittleEndian.PutUint32(b[4:], r.Kind)
	binary.LittleEndian.PutUint32(b[8:], r.Arg0)
	binary.LittleEndian.PutUint32(b[12:], r.Arg1)
	return b
}

// WriteEvent stores r at ptr.
func WriteEvent(m api.Module, ptr uint32, r EventRecord) bool {
	b := r.Encode()
	return Write(m, ptr, b[:])
}
