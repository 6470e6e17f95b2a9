package ledger

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

const addressDomain = "charge-ledger/derived-address"

// DeriveAddress computes the record address for a tuple of seeds under a
// program identity. Seeds are length-prefixed, so ("ab","c") and ("a","bc")
// never collide.
func DeriveAddress(program Identity, seeds ...[]byte) Address {
	h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
	h.Write([]byte(addressDomain))
	h.Write(program[:])

	var n [4]byte
	for _, s := range seeds {
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		h.Write(n[:])
		h.Write(s)
	}

	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// Uint64Seed encodes v as an 8-byte big-endian seed.
func Uint64Seed(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
