// Package codec implements the bit-packed sequence codecs used throughout
// kmersig: a 2-bit encoding for the four canonical DNA bases and a 4-bit
// encoding for the IUPAC degenerate alphabet. Both codecs are
// boundary-correct — a code that straddles a byte seam is split across
// the two bytes the same way on encode and decode — and every vectorized
// variant registered in the dispatch table is required to match the
// scalar reference bit-for-bit (see TestSIMDParity).
package codec

import "fmt"

// Alphabet selects the bit width and accepted letters used by the codec.
type Alphabet int

const (
	// Alphabet2 is the four-letter canonical alphabet {A,C,G,T}, packed
	// at 2 bits per base. U is accepted on input and treated as T.
	Alphabet2 Alphabet = iota
	// Alphabet4 is the sixteen-letter IUPAC degenerate alphabet, packed
	// at 4 bits per base.
	Alphabet4
)

// BitsPerBase returns the packed width of one base under a.
func (a Alphabet) BitsPerBase() int {
	switch a {
	case Alphabet2:
		return 2
	case Alphabet4:
		return 4
	default:
		panic(fmt.Sprintf("codec: invalid alphabet %d", a))
	}
}

func (a Alphabet) String() string {
	switch a {
	case Alphabet2:
		return "alphabet-2"
	case Alphabet4:
		return "alphabet-4"
	default:
		return fmt.Sprintf("codec.Alphabet(%d)", int(a))
	}
}

// base2Code is the 2-bit code table for the canonical alphabet. Index is
// the ASCII byte value, upper or lower case; U maps to the same code as
// T. An entry of -1 marks an invalid input byte.
var base2Code = buildBase2Table()

var base2Letter = [4]byte{'A', 'C', 'G', 'T'}

func buildBase2Table() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	set := func(c byte, v int8) {
		t[c] = v
		t[c-'A'+'a'] = v
	}
	set('A', 0)
	set('C', 1)
	set('G', 2)
	set('T', 3)
	set('U', 3)
	return t
}

// iupacBase4 maps every IUPAC letter to its 4-bit degenerate code, the
// bitwise OR of the bases it represents: A=0001, C=0010, G=0100, T=1000.
var iupacBase4 = buildIUPACTable()

// base4Letter maps a 4-bit code back to its canonical uppercase IUPAC
// letter. All 15 non-zero patterns in [1,15] are populated.
var base4Letter [16]byte

func buildIUPACTable() [256]int8 {
	const (
		bA = 1 << iota
		bC
		bG
		bT
	)
	letters := map[byte]int8{
		'A': bA,
		'C': bC,
		'G': bG,
		'T': bT,
		'U': bT,
		'M': bA | bC,
		'R': bA | bG,
		'W': bA | bT,
		'S': bC | bG,
		'Y': bC | bT,
		'K': bG | bT,
		'V': bA | bC | bG,
		'H': bA | bC | bT,
		'D': bA | bG | bT,
		'B': bC | bG | bT,
		'N': bA | bC | bG | bT,
	}
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for c, v := range letters {
		t[c] = v
		if c != 'U' {
			base4Letter[v] = c
		}
		t[c-'A'+'a'] = v
	}
	base4Letter[bT] = 'T'
	return t
}

// Bases returns the set of alphabet-2 base codes (each in [0,3]) that the
// 4-bit IUPAC code v represents, in ascending order. v must be in [1,15].
func Bases(v uint8) []uint8 {
	var out []uint8
	for b := uint8(0); b < 4; b++ {
		if v&(1<<b) != 0 {
			out = append(out, b)
		}
	}
	return out
}

// Degeneracy returns the number of concrete bases the 4-bit IUPAC code v
// represents (popcount of v, restricted to the low 4 bits).
func Degeneracy(v uint8) int {
	n := 0
	for b := uint8(0); b < 4; b++ {
		if v&(1<<b) != 0 {
			n++
		}
	}
	return n
}
