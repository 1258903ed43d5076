package codec

// This file implements a byte-at-a-time codec variant alongside the
// scalar reference in codec.go. It stands in for a real SIMD
// implementation (the spec's "dynamic dispatch for codecs" design note):
// an actual vector build would replace vectorEncode/vectorDecode with a
// cgo or assembly kernel and register it in impls below, subject to the
// same parity requirement. Every entry here operates on *relative*
// offsets within its own working window — never on absolute offsets from
// some outer base pointer — per spec §4.1.

// impl is one codec implementation: a matched encode/decode pair that
// must agree bit-for-bit with every other entry in impls for all lengths
// in [0, 2048] (see TestSIMDParity).
type impl struct {
	name   string
	encode func(alphabet Alphabet, ascii []byte) (Sequence, error)
	decode func(alphabet Alphabet, packed []byte, length int) []byte
}

// impls is the codec dispatch table. It is populated unconditionally
// here; a CPU-feature-gated build would filter this list at init time to
// the implementations the running CPU supports, keeping only entries
// that passed the parity test during development.
var impls = []impl{
	{name: "scalar", encode: Encode, decode: Decode},
	{name: "vector", encode: vectorEncode, decode: vectorDecode},
}

// basesPerByte is the number of whole codes that pack into one byte for
// alphabet a: 4 for 2-bit codes, 2 for 4-bit codes.
func basesPerByte(a Alphabet) int {
	return 8 / a.BitsPerBase()
}

// vectorEncode packs ascii the same way Encode does, but processes
// whole aligned bytes (basesPerByte(alphabet) codes at a time) through a
// precomputed lookup table instead of one code at a time, falling back
// to the scalar bit-twiddling path (putCode) for any unaligned head/tail
// bases. The two must produce identical output for every length.
func vectorEncode(alphabet Alphabet, ascii []byte) (Sequence, error) {
	w := alphabet.BitsPerBase()
	n := basesPerByte(alphabet)
	table := codeTable(alphabet)
	packed := make([]byte, (len(ascii)*w+7)/8)

	// aligned is the largest multiple of n not exceeding len(ascii); the
	// byte window [0, aligned/n) is filled via the table, the remainder
	// [aligned, len(ascii)) falls back to scalar placement continuing
	// from the same absolute bit position so the straddle logic in
	// putCode stays correct across the boundary.
	aligned := len(ascii) - len(ascii)%n
	for base := 0; base < aligned; base += n {
		var b byte
		for k := 0; k < n; k++ {
			c := ascii[base+k]
			v := table[c]
			if v < 0 {
				return Sequence{}, &InvalidCharacterError{Alphabet: alphabet, Offset: base + k, Byte: c}
			}
			b |= uint8(v) << uint((n-1-k)*w)
		}
		packed[base/n] = b
	}
	for i := aligned; i < len(ascii); i++ {
		c := ascii[i]
		v := table[c]
		if v < 0 {
			return Sequence{}, &InvalidCharacterError{Alphabet: alphabet, Offset: i, Byte: c}
		}
		putCode(packed, i, w, uint8(v))
	}
	return Sequence{Alphabet: alphabet, Length: len(ascii), Packed: packed}, nil
}

// vectorDecode mirrors vectorEncode: whole aligned bytes are unpacked via
// a table, any tail falls back to the scalar getCode path.
func vectorDecode(alphabet Alphabet, packed []byte, length int) []byte {
	w := alphabet.BitsPerBase()
	n := basesPerByte(alphabet)
	letters := letterTable(alphabet)
	out := make([]byte, length)

	aligned := length - length%n
	mask := uint8(1<<w) - 1
	for base := 0; base < aligned; base += n {
		b := packed[base/n]
		for k := 0; k < n; k++ {
			v := (b >> uint((n-1-k)*w)) & mask
			out[base+k] = letters(v)
		}
	}
	for i := aligned; i < length; i++ {
		out[i] = letters(getCode(packed, i, w))
	}
	return out
}
