// Copyright 2025 Certen Protocol
//
// Sparse liveness bitmap over the TxoSID space (§4.4). Only words that
// contain at least one live bit are stored — sparse, not dense, since the
// typical steady-state UTXO set is a small fraction of the ever-assigned
// TxoSID range. Checksum is a deterministic digest of a compressed
// (run-length-over-absent-words) serialization, so two replicas with the
// same live set always agree on checksum regardless of map iteration order.

package bitmap

import (
	"sort"
	"sync"

	"github.com/certen/ledgercore/pkg/codec"
	"github.com/certen/ledgercore/pkg/hashing"
	"github.com/certen/ledgercore/pkg/types"
)

const wordBits = 64

// Bitmap is a sparse liveness bitmap, one bit per TxoSID.
type Bitmap struct {
	mu    sync.RWMutex
	words map[uint64]uint64 // word index -> 64-bit chunk; absent word == all zero
}

// New returns an empty bitmap.
func New() *Bitmap {
	return &Bitmap{words: make(map[uint64]uint64)}
}

func wordIndex(sid types.TxoSID) (word uint64, bit uint) {
	word = uint64(sid) / wordBits
	bit = uint(uint64(sid) % wordBits)
	return
}

// Set marks sid live.
func (b *Bitmap) Set(sid types.TxoSID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, bit := wordIndex(sid)
	b.words[w] |= 1 << bit
}

// Clear marks sid dead, pruning the backing word if it becomes all-zero so
// the map only ever holds words with at least one live bit.
func (b *Bitmap) Clear(sid types.TxoSID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, bit := wordIndex(sid)
	v, ok := b.words[w]
	if !ok {
		return
	}
	v &^= 1 << bit
	if v == 0 {
		delete(b.words, w)
	} else {
		b.words[w] = v
	}
}

// IsLive reports whether sid's bit is set.
func (b *Bitmap) IsLive(sid types.TxoSID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	w, bit := wordIndex(sid)
	return b.words[w]&(1<<bit) != 0
}

// sortedWordIndices returns the populated word indices in ascending order.
func (b *Bitmap) sortedWordIndices() []uint64 {
	idx := make([]uint64, 0, len(b.words))
	for w := range b.words {
		idx = append(idx, w)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	return idx
}

// compressedBytes serializes the populated words in ascending index order,
// each as (word_index, bits), which is a run-length-over-absent-words
// encoding: a gap between consecutive indices implicitly encodes a run of
// all-zero words without storing them.
func (b *Bitmap) compressedBytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	w := codec.NewWriter()
	idx := b.sortedWordIndices()
	w.WriteUint64(uint64(len(idx)))
	for _, i := range idx {
		w.WriteUint64(i)
		w.WriteUint64(b.words[i])
	}
	return w.Bytes()
}

// Checksum is the deterministic digest included in StateCommitmentData.
func (b *Bitmap) Checksum() hashing.Digest {
	return hashing.Sum(b.compressedBytes())
}

// Snapshot returns an immutable copy of the populated words, for building a
// CompactProof against a point-in-time bitmap state without holding the
// live lock while the caller works.
func (b *Bitmap) Snapshot() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	words := make(map[uint64]uint64, len(b.words))
	for k, v := range b.words {
		words[k] = v
	}
	return &Snapshot{words: words}
}

// Snapshot is a pinned, read-only view of the bitmap at a point in time.
type Snapshot struct {
	words map[uint64]uint64
}

// IsLive reports whether sid was live at snapshot time.
func (s *Snapshot) IsLive(sid types.TxoSID) bool {
	w, bit := wordIndex(sid)
	return s.words[w]&(1<<bit) != 0
}

// Checksum recomputes the checksum of this pinned snapshot.
func (s *Snapshot) Checksum() hashing.Digest {
	idx := make([]uint64, 0, len(s.words))
	for w := range s.words {
		idx = append(idx, w)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	w := codec.NewWriter()
	w.WriteUint64(uint64(len(idx)))
	for _, i := range idx {
		w.WriteUint64(i)
		w.WriteUint64(s.words[i])
	}
	return hashing.Sum(w.Bytes())
}

// CompactProof is a portable proof of a single TxoSID's liveness bit,
// carrying just enough of the bitmap (the one word containing the bit) for
// a verifier to recompute the checksum over the rest alongside it.
type CompactProof struct {
	TxoSID     types.TxoSID `json:"txo_sid"`
	Live       bool         `json:"live"`
	WordIndex  uint64       `json:"word_index"`
	WordValue  uint64       `json:"word_value"`
	OtherWords []WordEntry  `json:"other_words"` // every other populated word, for checksum recomputation
}

// WordEntry is one populated word outside the queried bit's own word.
type WordEntry struct {
	Index uint64 `json:"index"`
	Value uint64 `json:"value"`
}

// Prove builds a CompactProof for sid against this snapshot.
func (s *Snapshot) Prove(sid types.TxoSID) CompactProof {
	w, bit := wordIndex(sid)
	proof := CompactProof{
		TxoSID:    sid,
		WordIndex: w,
		WordValue: s.words[w],
		Live:      s.words[w]&(1<<bit) != 0,
	}
	for idx, val := range s.words {
		if idx == w {
			continue
		}
		proof.OtherWords = append(proof.OtherWords, WordEntry{Index: idx, Value: val})
	}
	sort.Slice(proof.OtherWords, func(i, j int) bool { return proof.OtherWords[i].Index < proof.OtherWords[j].Index })
	return proof
}

// Verify checks that proof's claimed liveness bit is consistent with its
// own word, and that the full word set (including WordIndex's word)
// recomputes to expectedChecksum.
func (p CompactProof) Verify(expectedChecksum hashing.Digest) bool {
	_, bit := wordIndex(p.TxoSID)
	claimedLive := p.WordValue&(1<<bit) != 0
	if claimedLive != p.Live {
		return false
	}

	type entry struct {
		index uint64
		value uint64
	}
	all := make([]entry, 0, len(p.OtherWords)+1)
	if p.WordValue != 0 {
		all = append(all, entry{index: p.WordIndex, value: p.WordValue})
	}
	for _, e := range p.OtherWords {
		all = append(all, entry{index: e.Index, value: e.Value})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].index < all[j].index })

	w := codec.NewWriter()
	w.WriteUint64(uint64(len(all)))
	for _, e := range all {
		w.WriteUint64(e.index)
		w.WriteUint64(e.value)
	}
	return hashing.Sum(w.Bytes()).Equal(expectedChecksum)
}
