// Package indicator computes technical indicators over float64 columns.
//
// Every function returns a slice aligned with its input. Positions without
// enough history hold NaN.
package indicator
