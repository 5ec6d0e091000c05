// Package detect decides whether two frames show different slides.
//
// Comparison runs in two tiers. A 32-bit perceptual hash built from the low
// frequency DCT coefficients of an 8×8 luminance thumbnail settles the clear
// cases by Hamming distance. Frames whose distance falls in the ambiguous band
// are compared with a global structural similarity score. All functions are
// pure and deterministic.
package detect
