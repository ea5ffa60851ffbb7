package bitset

// Transpose64 transposes a 64×64 bit matrix in place. Row r is a[r] and
// column c is bit c of each row; afterwards bit c of a[r] holds what bit r of
// a[c] held before.
func Transpose64(a *[64]uint64) {
	m := uint64(0x00000000FFFFFFFF)
	for j := 32; j != 0; j, m = j>>1, m^(m<<(j>>1)) {
		for k := 0; k < 64; k = (k + j + 1) &^ j {
			t := ((a[k] >> j) ^ a[k+j]) & m
			a[k+j] ^= t
			a[k] ^= t << j
		}
	}
}
