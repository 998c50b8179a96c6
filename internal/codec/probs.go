// Package codec implements the fixed-point encoding of four move
// probabilities into a 56-bit packed form, used both in final table
// file records and in-memory where a compact representation is
// convenient.
package codec

// NumDirections is the number of moves a board position is scored
// for, in board.Up/Right/Down/Left order.
const NumDirections = 4

const bitsPerField = 14
const fieldMask = uint64(1)<<bitsPerField - 1

// endgameSum is the tile sum of the final possible stratum, where any
// probability may legitimately be exactly 1 and must encode as
// all-ones instead of wrapping to zero.
const endgameSum = 32768

// Pack encodes four probabilities in [0,1] into the low 56 bits of a
// uint64: four 14-bit fields, one per direction, each a greedy binary
// fraction of round_down(p * 2^14). When sum equals 32768 (the final
// possible stratum), 2^-14 is subtracted from each p first so that
// p==1 encodes as all-ones rather than overflowing to zero.
func Pack(probs [NumDirections]float64, sum int) uint64 {
	var res uint64
	for i, p := range probs {
		if sum == endgameSum {
			p -= 1.0 / float64(uint64(1)<<bitsPerField)
		}
		var field uint64
		for exp := 1; exp <= bitsPerField; exp++ {
			threshold := 1.0 / float64(uint64(1)<<uint(exp))
			if p >= threshold {
				field |= uint64(1) << uint(bitsPerField-exp)
				p -= threshold
			}
		}
		res |= field << uint(bitsPerField*i)
	}
	return res
}

// Unpack decodes the low 56 bits of packed back into four
// probabilities, summing the set bits as 2^-exp and adding a
// 2^-14 rounding bias to any non-zero result (half-ulp round to
// nearest representable value, matching the encoder's greedy
// truncation).
func Unpack(packed uint64) [NumDirections]float64 {
	var probs [NumDirections]float64
	for i := 0; i < NumDirections; i++ {
		field := (packed >> uint(bitsPerField*i)) & fieldMask

		var p float64
		for exp := 1; exp <= bitsPerField; exp++ {
			if (field>>uint(bitsPerField-exp))&1 == 1 {
				p += 1.0 / float64(uint64(1)<<uint(exp))
			}
		}
		if p != 0 {
			p += 1.0 / float64(uint64(1)<<bitsPerField)
		}
		probs[i] = p
	}
	return probs
}
