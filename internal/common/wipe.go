package common

import "math/big"

// Wipe clears the backing words of x and resets it to zero. math/big never
// shrinks its word slice in place, so overwriting the current Bits view
// reaches every limb that held secret material.
func Wipe(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
}

// WipeAll wipes every integer in the list, skipping nils.
func WipeAll(xs ...*big.Int) {
	for _, x := range xs {
		Wipe(x)
	}
}
