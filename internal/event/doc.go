// Package event defines the domain types for affiliate conversion
// processing: the inbound Event, the stored Record, and the three-way
// classification that relates one to the other.
//
// The package sits at the bottom of the dependency graph. Every other
// internal package imports event; event imports nothing internal.
//
// Design constraints:
//   - Decoding is tolerant of loosely typed producers: tokens may arrive
//     as JSON strings or numbers, amounts as numbers or numeric strings.
//   - Amount comparison is numeric, never textual: 100 and 100.00 are
//     the same value.
//   - Classification is a pure function of (Event, prior Record); the
//     prior Record travels only with the variants that have one.
//   - All JSON tags use snake_case.
package event
