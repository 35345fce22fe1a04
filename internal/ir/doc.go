// Package ir provides the value representation shared by the query pipeline.
//
// Literal constants in expressions, bound SQL parameters, and materialized
// rows are all IRValues. Every other internal package may import ir; ir
// imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - numbers are int64
//   - NULL is a first-class value (IRNull): outer joins produce it
//   - Canonical JSON (RFC 8785 key order, NFC strings) for golden output and
//     fingerprints
package ir
