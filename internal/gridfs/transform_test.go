// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package gridfs

import (
	"bytes"
	"testing"
)

func TestIdentityTransform_NoCopy(t *testing.T) {
	src := []byte("payload")
	var tr IdentityTransform

	out, err := tr.Pre(src, FlagCompress)
	if err != nil {
		t.Fatalf("Pre: %v", err)
	}
	if &out[0] != &src[0] {
		t.Error("identity Pre must return the source slice")
	}

	out, err = tr.Post(src, FlagCompress)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if &out[0] != &src[0] {
		t.Error("identity Post must return the source slice")
	}

	if tr.PendingSize(DefaultChunkSize, 0) != DefaultChunkSize {
		t.Error("identity pending size must equal chunk size")
	}
}

func TestCompressTransforms_RoundTrip(t *testing.T) {
	zstdTr, err := NewZstdTransform()
	if err != nil {
		t.Fatalf("NewZstdTransform: %v", err)
	}

	transforms := []struct {
		name string
		tr   ChunkTransform
	}{
		{"zstd", zstdTr},
		{"gzip", GzipTransform{}},
	}
	sizes := []int{0, 1, DefaultChunkSize - 1, DefaultChunkSize}

	for _, tc := range transforms {
		t.Run(tc.name, func(t *testing.T) {
			for _, size := range sizes {
				src := pattern(size)

				encoded, err := tc.tr.Pre(src, FlagCompress)
				if err != nil {
					t.Fatalf("Pre(%d): %v", size, err)
				}
				decoded, err := tc.tr.Post(encoded, FlagCompress)
				if err != nil {
					t.Fatalf("Post(%d): %v", size, err)
				}
				if !bytes.Equal(decoded, src) {
					t.Errorf("size %d: round-trip mismatch", size)
				}
			}
		})
	}
}

func TestCompressTransforms_FlagGated(t *testing.T) {
	zstdTr, err := NewZstdTransform()
	if err != nil {
		t.Fatalf("NewZstdTransform: %v", err)
	}

	src := []byte("plain")
	for _, tr := range []ChunkTransform{zstdTr, GzipTransform{}} {
		out, err := tr.Pre(src, FlagNoMD5) // sem FlagCompress
		if err != nil {
			t.Fatalf("Pre: %v", err)
		}
		if &out[0] != &src[0] {
			t.Error("transform without FlagCompress must pass data through")
		}
		out, err = tr.Post(src, FlagNoMD5)
		if err != nil {
			t.Fatalf("Post: %v", err)
		}
		if &out[0] != &src[0] {
			t.Error("Post without FlagCompress must pass data through")
		}
	}
}

func TestZstdTransform_RejectsGarbage(t *testing.T) {
	tr, err := NewZstdTransform()
	if err != nil {
		t.Fatalf("NewZstdTransform: %v", err)
	}
	if _, err := tr.Post([]byte("definitely not zstd"), FlagCompress); err == nil {
		t.Error("expected decode error on garbage input")
	}
}
