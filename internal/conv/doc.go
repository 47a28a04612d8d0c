// Package conv provides checked integer conversions for values read from
// index files and for ids crossing the int/int32 boundary.
package conv
