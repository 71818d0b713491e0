// Package sample defines the Feature Sample: one stored multi-frame gesture
// sequence plus its metadata, and the on-disk codec for sample files.
//
// # Storage Layout
//
// A sample file is a NumPy .npz archive (a zip of .npy entries):
//   - "sequence" (or the alias "sequences"): rank-2 array (T, D)
//   - "meta" (optional): uint8 array holding the JSON bytes of the
//     embedded metadata mapping
//
// A sidecar file with the same stem and a .json suffix carries the
// authoritative metadata when present.
//
// # Shape Reconciliation
//
// Fit is the single pad/truncate routine in the repository. Both the
// validator's fix path and the merger's second pass call it, so the two
// stages cannot drift apart.
//
// # Metadata Origin
//
// Metadata is a tagged variant (absent, sidecar, embedded) carrying the raw
// bytes; Fields converts it into a plain mapping and never fails.
package sample
