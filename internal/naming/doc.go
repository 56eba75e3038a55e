// Package naming turns extracted invoice fields into a final filename.
//
// The steps run in this order for every file:
//   - Render substitutes {date}, {merchant}, {invoice}, {month}, {amount}
//     and {currency} in a template, using fixed placeholders for empty fields.
//   - Sanitize replaces characters reserved by common filesystems.
//   - EnsurePDFSuffix appends ".pdf" unless already present in any case.
//   - CollisionResolver keeps two files in one run from claiming the same name.
package naming
