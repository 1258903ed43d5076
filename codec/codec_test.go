package codec

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	alphabets := []struct {
		a       Alphabet
		letters string
	}{
		{Alphabet2, "ACGT"},
		{Alphabet4, "ACGTMRWSYKVHDBN"},
	}
	rng := rand.New(rand.NewSource(1))
	for _, tc := range alphabets {
		t.Run(tc.a.String(), func(t *testing.T) {
			for length := 0; length <= 128; length++ {
				b := make([]byte, length)
				for i := range b {
					b[i] = tc.letters[rng.Intn(len(tc.letters))]
					if rng.Intn(2) == 0 {
						b[i] = b[i] - 'A' + 'a'
					}
				}
				seq, err := Encode(tc.a, b)
				if err != nil {
					t.Fatalf("length %d: Encode: %v", length, err)
				}
				got := Decode(tc.a, seq.Packed, seq.Length)
				want := bytes.ToUpper(b)
				if !bytes.Equal(got, want) {
					t.Fatalf("length %d: round trip mismatch:\n got  %s\n want %s", length, got, want)
				}
			}
		})
	}
}

func TestURoundTripsAsT(t *testing.T) {
	seq, err := Encode(Alphabet2, []byte("acgu"))
	if err != nil {
		t.Fatal(err)
	}
	got := Decode(Alphabet2, seq.Packed, seq.Length)
	if string(got) != "ACGT" {
		t.Fatalf("got %s, want ACGT", got)
	}
}

func TestInvalidCharacter(t *testing.T) {
	_, err := Encode(Alphabet2, []byte("ACGX"))
	if err == nil {
		t.Fatal("expected error for invalid character")
	}
	var ice *InvalidCharacterError
	if !asInvalidCharacterError(err, &ice) {
		t.Fatalf("expected *InvalidCharacterError, got %T: %v", err, err)
	}
	if ice.Offset != 3 || ice.Byte != 'X' {
		t.Fatalf("got offset %d byte %q, want offset 3 byte 'X'", ice.Offset, ice.Byte)
	}
}

func asInvalidCharacterError(err error, target **InvalidCharacterError) bool {
	ice, ok := err.(*InvalidCharacterError)
	if ok {
		*target = ice
	}
	return ok
}

// TestSIMDParity checks that every registered codec implementation
// agrees byte-for-byte with the scalar reference for every length in
// [0, 2048], per spec §4.1/§8.
func TestSIMDParity(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, a := range []Alphabet{Alphabet2, Alphabet4} {
		letters := "ACGT"
		if a == Alphabet4 {
			letters = "ACGTMRWSYKVHDBN"
		}
		for length := 0; length <= 2048; length++ {
			b := make([]byte, length)
			for i := range b {
				b[i] = letters[rng.Intn(len(letters))]
			}
			var ref Sequence
			for _, im := range impls {
				seq, err := im.encode(a, b)
				if err != nil {
					t.Fatalf("%s/%s length %d: encode: %v", im.name, a, length, err)
				}
				if im.name == "scalar" {
					ref = seq
					continue
				}
				if !bytes.Equal(seq.Packed, ref.Packed) {
					t.Fatalf("%s/%s length %d: encode mismatch:\n got  %x\n want %x", im.name, a, length, seq.Packed, ref.Packed)
				}
				got := im.decode(a, seq.Packed, length)
				want := im.decode(a, ref.Packed, length)
				if !bytes.Equal(got, want) {
					t.Fatalf("%s/%s length %d: decode mismatch", im.name, a, length)
				}
			}
		}
	}
}

func TestDegeneracyAndBases(t *testing.T) {
	for _, c := range []struct {
		letter string
		want   []uint8
	}{
		{"A", []uint8{0}},
		{"N", []uint8{0, 1, 2, 3}},
		{"M", []uint8{0, 1}},
		{"K", []uint8{2, 3}},
	} {
		v := iupacBase4[c.letter[0]]
		got := Bases(uint8(v))
		if len(got) != len(c.want) {
			t.Fatalf("%s: got %v, want %v", c.letter, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%s: got %v, want %v", c.letter, got, c.want)
			}
		}
		if Degeneracy(uint8(v)) != len(c.want) {
			t.Fatalf("%s: Degeneracy got %d, want %d", c.letter, Degeneracy(uint8(v)), len(c.want))
		}
	}
}

func TestAlphabetString(t *testing.T) {
	if !strings.Contains(Alphabet2.String(), "2") {
		t.Fatal("Alphabet2 string should mention 2")
	}
}
