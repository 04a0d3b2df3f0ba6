// This file is part of FATMount
// Copyright (c) 2025 The FATMount Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package fat

import (
	"bytes"
	"testing"

	"github.com/openembed/fatmount/pkg/engine"
	"github.com/openembed/fatmount/pkg/vfs"
)

// writeLargeFile creates a file bigger than one allocation cluster so that
// read-only opens qualify for a fast-seek link map.
func writeLargeFile(t *testing.T, handler vfs.Handler, name string) []byte {
	t.Helper()
	payload := bytes.Repeat([]byte{0xA5, 0x5A, 0x33}, 2048) // 6 KiB > 4 KiB cluster
	fd, err := handler.Open(name, vfs.WriteOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := handler.Write(fd, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := handler.Close(fd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return payload
}

func readAll(t *testing.T, handler vfs.Handler, fd int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 1000)
	for {
		n, err := handler.Read(fd, buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

func TestLinkMapHeapRetry(t *testing.T) {
	// The engine demands more entries than the inline table holds, so the
	// builder must retry once with the reported capacity.
	eng := &engine.FakeEngine{LinkMapEntries: 16}
	adapter, registry := newTestAdapter(t, eng)
	defer adapter.Shutdown()
	mustMount(t, adapter, "/sd")
	handler := handlerFor(t, registry, "/sd")
	payload := writeLargeFile(t, handler, "/big.bin")

	fd, err := handler.Open("/big.bin", vfs.ReadOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readAll(t, handler, fd); !bytes.Equal(got, payload) {
		t.Fatalf("read through heap-grown link map returned wrong data")
	}

	var linkMap []uint32
	if err := handler.Ioctl(fd, vfs.IoctlGetLinkMap, &linkMap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(linkMap) != 16 || linkMap[0] != 16 {
		t.Fatalf("expected 16-entry link map, got %v", linkMap)
	}
}

func TestLinkMapInline(t *testing.T) {
	// Three entries fit the four-slot inline table of the test config.
	eng := &engine.FakeEngine{LinkMapEntries: 3}
	adapter, registry := newTestAdapter(t, eng)
	defer adapter.Shutdown()
	mustMount(t, adapter, "/sd")
	handler := handlerFor(t, registry, "/sd")
	payload := writeLargeFile(t, handler, "/big.bin")

	fd, err := handler.Open("/big.bin", vfs.ReadOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readAll(t, handler, fd); !bytes.Equal(got, payload) {
		t.Fatalf("read through inline link map returned wrong data")
	}
	if err := handler.Close(fd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLinkMapFailureIsTransparent(t *testing.T) {
	// Map construction fails outright; reads must still return identical
	// bytes, only slower.
	eng := &engine.FakeEngine{LinkMapResult: engine.ResDiskErr}
	adapter, registry := newTestAdapter(t, eng)
	defer adapter.Shutdown()
	mustMount(t, adapter, "/sd")
	handler := handlerFor(t, registry, "/sd")
	payload := writeLargeFile(t, handler, "/big.bin")

	fd, err := handler.Open("/big.bin", vfs.ReadOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readAll(t, handler, fd); !bytes.Equal(got, payload) {
		t.Fatalf("read without link map returned wrong data")
	}

	// The explicit map request does surface the failure.
	var linkMap []uint32
	if err := handler.Ioctl(fd, vfs.IoctlGetLinkMap, &linkMap); err == nil {
		t.Fatalf("expected link map construction error")
	}
}

func TestLinkMapNotBuiltForWritableFiles(t *testing.T) {
	adapter, registry := newTestAdapter(t, &engine.FakeEngine{})
	defer adapter.Shutdown()
	mustMount(t, adapter, "/sd")
	handler := handlerFor(t, registry, "/sd")
	writeLargeFile(t, handler, "/big.bin")

	fd, err := handler.Open("/big.bin", vfs.ReadWrite|vfs.Truncate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := handler.Read(fd, make([]byte, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	adapter.mu.Lock()
	handle := adapter.files[fd-1]
	adapter.mu.Unlock()
	if handle.mapTried || handle.linkMap != nil {
		t.Fatalf("writable file must not trigger link map construction")
	}
}
