// Package main provides the entry point for the densesift CLI.
//
// densesift places an exact number of keypoints on a regular grid, computes
// a SIFT descriptor for each of them and writes a tab-separated feature file
// together with a keypoint overlay image.
//
// Usage:
//
//	densesift <image> <features> [count] [sampling 0|1] [resize 0|1]
//
// See --help for all available options.
package main

// main is the entry point for densesift.
func main() {
	Execute()
}
