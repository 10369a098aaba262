// Package repopath resolves where an asset's backup repository lives.
//
// Resolution is a pure function of the asset path and the storage
// policy: no filesystem access, no existence checks. Adjacent mode
// places the repository as a suffixed sibling directory so the asset
// itself is never renamed; global mode mirrors the asset's
// vault-relative directory under a configured root using the same
// sibling convention, so both modes share one physical layout.
package repopath
