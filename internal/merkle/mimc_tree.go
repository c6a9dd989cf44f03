// Package merkle commits to a cell grid with a MiMC (BN254) Merkle root.
package merkle

import (
	"errors"
	"math/big"

	bnmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// element writes x as a 32-byte big-endian field element.
func element(x *big.Int) []byte {
	var out [32]byte
	return x.FillBytes(out[:])
}

func hashLeaf(code uint8) *big.Int {
	h := bnmimc.NewMiMC()
	h.Write(element(new(big.Int).SetUint64(uint64(code))))
	return new(big.Int).SetBytes(h.Sum(nil))
}

func hashPair(left, right *big.Int) *big.Int {
	h := bnmimc.NewMiMC()
	h.Write(element(left))
	h.Write(element(right))
	return new(big.Int).SetBytes(h.Sum(nil))
}

// root folds width leaf hashes pairwise up to a single node. Slots past the
// end of codes hold the hash of a zero code. width must be a power of two.
func root(codes []uint8, width int) (*big.Int, error) {
	if width <= 0 || width&(width-1) != 0 {
		return nil, errors.New("width must be a power of two")
	}
	if len(codes) > width {
		return nil, errors.New("more cells than leaves")
	}

	pad := hashLeaf(0)
	level := make([]*big.Int, width)
	for i := range level {
		if i < len(codes) {
			level[i] = hashLeaf(codes[i])
		} else {
			level[i] = pad
		}
	}
	for len(level) > 1 {
		for i := 0; i < len(level)/2; i++ {
			level[i] = hashPair(level[2*i], level[2*i+1])
		}
		level = level[:len(level)/2]
	}
	return level[0], nil
}

// Digest returns the root of the smallest tree that holds codes.
func Digest(codes []uint8) *big.Int {
	width := 1
	for width < len(codes) {
		width <<= 1
	}
	r, err := root(codes, width)
	if err != nil {
		panic(err)
	}
	return r
}
