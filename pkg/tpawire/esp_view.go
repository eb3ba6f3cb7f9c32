// Copyright 2025 Certen Protocol
//
// EspView is a typed, bounds-checked accessor over a decapsulated ESP
// datagram's TPA extension: [ ESP-header | token: u8[L] | (cumul items:
// [u32,u8[L]]{k})? | ... ]. All byte-offset arithmetic lives here so the
// tracker and verifier never touch raw slices directly.

package tpawire

import (
	"encoding/binary"
	"fmt"
)

// EspView wraps the bytes immediately following the ESP header: the token
// and, for cumulative transforms, the trailing cumulative-item block.
type EspView struct {
	data           []byte
	hashItemLength int
}

// NewEspView builds a view over the TPA extension bytes that follow the
// ESP header. hashItemLength is the negotiated L.
func NewEspView(data []byte, hashItemLength int) (*EspView, error) {
	if hashItemLength <= 0 {
		return nil, fmt.Errorf("EspView: hash item length must be positive")
	}
	if len(data) < hashItemLength {
		return nil, fmt.Errorf("EspView: need at least %d bytes for the token, got %d", hashItemLength, len(data))
	}
	return &EspView{data: data, hashItemLength: hashItemLength}, nil
}

// Token returns the L-byte in-packet hash immediately following the ESP
// header.
func (v *EspView) Token() []byte {
	return v.data[:v.hashItemLength]
}

// cumulItemSize is the wire size of one (seq, packet_hash) pair.
func (v *EspView) cumulItemSize() int {
	return 4 + v.hashItemLength
}

// CumulativeItems returns the k trailing (seq, packet_hash) announcements
// that follow the token, for CUMULATIVE/PARA_CUMUL transforms. k is
// num_linear + num_random from the negotiated token_modes.
func (v *EspView) CumulativeItems(k int) ([]CumulativeItem, error) {
	if k == 0 {
		return nil, nil
	}
	itemSize := v.cumulItemSize()
	want := v.hashItemLength + k*itemSize
	if len(v.data) < want {
		return nil, fmt.Errorf("EspView: need %d bytes for %d cumulative items, got %d", want, k, len(v.data))
	}
	items := make([]CumulativeItem, k)
	for i := 0; i < k; i++ {
		start := v.hashItemLength + i*itemSize
		seq := binary.BigEndian.Uint32(v.data[start : start+4])
		hash := append([]byte(nil), v.data[start+4:start+itemSize]...)
		items[i] = CumulativeItem{Seq: seq, PacketHash: hash}
	}
	return items, nil
}

// DataOffset returns esp_data_offset relative to the start of v.data: the
// byte offset at which the encrypted payload begins, i.e. sizeof(token) +
// k*(4+L). Downstream decryption must be told this offset.
func (v *EspView) DataOffset(k int) int {
	return v.hashItemLength + k*v.cumulItemSize()
}

// CumulativeItem is one pre-announced (seq, packet_hash) pair carried in a
// cumulative authentication block.
type CumulativeItem struct {
	Seq        uint32
	PacketHash []byte
}

// EncodeEspExtension renders the token plus an optional cumulative block
// into the byte layout EspView parses, for use by tests and by a sender
// exercising the same wire format.
func EncodeEspExtension(token []byte, items []CumulativeItem) []byte {
	out := make([]byte, len(token), len(token)+len(items)*(4+len(token)))
	copy(out, token)
	for _, item := range items {
		var seqBuf [4]byte
		binary.BigEndian.PutUint32(seqBuf[:], item.Seq)
		out = append(out, seqBuf[:]...)
		out = append(out, item.PacketHash...)
	}
	return out
}
