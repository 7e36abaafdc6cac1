// Package quant reduces 8-bit grayscale rasters to a small fixed set of gray
// levels.
//
// Two interchangeable strategies are provided. Diffuser rounds each pixel to
// the nearest level of an evenly spaced ramp and pushes the rounding error
// into the unvisited neighbors using the Floyd-Steinberg weights (7/16 right,
// 3/16 below-left, 5/16 below, 1/16 below-right). Error that would land
// outside the image is dropped, not redistributed, which matches the usual
// formulation of the algorithm. The visit order is row-major, top to bottom
// and left to right; later pixels must observe the error already diffused by
// earlier ones, so the order is not negotiable.
//
// MedianCut runs a one-dimensional median cut over the intensity histogram to
// cluster the image into up to 16 groups, then maps each group onto the even
// 16-level ramp. The clustering decides which pixels share an output level;
// the output intensities themselves are always the exact ramp i*255/15 so the
// result stays perceptually uniform no matter what the input histogram looks
// like.
//
// Both strategies are deterministic: identical input pixels produce
// byte-identical output across runs. Neither allocates beyond the returned
// paletted image, and both emit a palette small enough for the PNG encoder to
// pack pixels at 2 or 4 bits per sample.
package quant
