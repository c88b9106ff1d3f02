// Package journal implements the engine's on-disk text formats (spec.md
// §4.12, §6): `;`-separated snapshot files with `[SECTION]` headers and
// `#` comment lines, and an append-only command journal rotated by
// lumberjack once it grows past a configured size. The line/field
// escaping rules are ported directly from the original engine's
// FileWriter/FileReader (quote-wrap every string field, double embedded
// quotes), so a snapshot produced here reads back unambiguously even
// when element names contain `;` or `"`.
package journal
