// Package gate defines feature gates: the typed values they take, the static
// catalog of gates an operator knows about, and the immutable snapshots that
// hold one resolved value per catalog gate.
//
// The catalog is a code-level table. Adding a gate is a code change, not a
// runtime operation. Snapshots are built by package resolver and published by
// package state; consumers only ever read them.
package gate
