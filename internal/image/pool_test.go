// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package image

import (
	"sync"
	"testing"
)

func TestPool_GetPut(t *testing.T) {
	pool := NewPool(2)

	buf, err := pool.Get(8, 8, FormatBGRA8)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	buf.Fill(9, 9, 9, 9)
	pool.Put(buf)

	if pool.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", pool.Len())
	}

	reused, err := pool.Get(8, 8, FormatBGRA8)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if reused != buf {
		t.Error("Get() did not reuse pooled buffer")
	}
	if r, g, b, a := reused.GetRGBA(3, 3); r|g|b|a != 0 {
		t.Error("reused buffer was not cleared")
	}

	other, _ := pool.Get(8, 8, FormatGray8)
	if other == buf {
		t.Error("Get() reused buffer of a different format")
	}
}

func TestPool_Limits(t *testing.T) {
	pool := NewPool(1)

	a, _ := NewBuf(4, 4, FormatBGRA8)
	b, _ := NewBuf(4, 4, FormatBGRA8)
	strided, _ := NewBufWithStride(4, 4, FormatBGRA8, 32)

	pool.Put(a)
	pool.Put(b)
	pool.Put(strided)
	pool.Put(nil)

	if pool.Len() != 1 {
		t.Errorf("Len() = %d, want 1", pool.Len())
	}
}

func TestPool_DropsWrappedMemory(t *testing.T) {
	pool := NewPool(0)

	data := make([]byte, 4*4*4)
	for i := range data {
		data[i] = 0xAB
	}
	wrapped, err := FromRaw(data, 4, 4, FormatBGRA8, 16)
	if err != nil {
		t.Fatal(err)
	}
	pool.Put(wrapped)
	if pool.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", pool.Len())
	}

	got, _ := pool.Get(4, 4, FormatBGRA8)
	if got.SharesMemory(wrapped) {
		t.Error("Get() returned caller memory")
	}
	if data[0] != 0xAB {
		t.Errorf("caller data[0] = %#x, want 0xab", data[0])
	}

	clone := wrapped.Clone()
	pool.Put(clone)
	if pool.Len() != 1 {
		t.Errorf("Len() = %d after Put(Clone), want 1", pool.Len())
	}
}

func TestPool_Concurrent(t *testing.T) {
	pool := NewPool(0)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				buf, err := pool.Get(16, 16, FormatBGRA8)
				if err != nil {
					t.Error(err)
					return
				}
				pool.Put(buf)
			}
		}()
	}
	wg.Wait()

	if pool.Len() == 0 || pool.Len() > 16 {
		t.Errorf("Len() = %d, want 1..16", pool.Len())
	}
}
