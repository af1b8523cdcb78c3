// Package common provides the number-theoretic helpers shared by the cl
// engine.
//
// This package includes:
// - Uniform sampling of big integers, quadratic residues and primes
// - Safe-prime generation and primality testing
// - Modular inverses and Legendre symbols
// - Four-square decomposition for range predicates
// - Zeroization of secret big.Int buffers
//
// This is an internal package not intended for direct use by applications.
// It supports the implementation of the public packages.
package common
