// Package integrity keeps an asset's backup history attached to the
// asset across renames and moves.
//
// Each repository carries a bounded JSON ledger of old-path/new-path
// entries. When an adjacent-mode asset is renamed, the tracker runs a
// three-step relocation protocol: ensure the destination parent
// exists, archive any repository already occupying the destination
// (renamed aside with a timestamp suffix, never deleted), then move
// the repository and verify it arrived. The ledger entry is recorded
// even when the physical move fails, so provenance survives a botched
// relocation. Global mode needs none of this and is a no-op.
package integrity
