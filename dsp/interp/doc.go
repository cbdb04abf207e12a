// Package interp provides the fractional-position interpolation primitives
// used by the WSOLA pitch shifter.
//
//   - [Hermite4]:   4-point cubic Hermite
//   - [Hermite4At]: Hermite4 over a slice with edge clamping
package interp
