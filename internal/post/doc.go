// Package post defines the content types that flow through the sync engine.
//
// This package contains type definitions only. Every other internal package
// may import post; post imports nothing internal.
//
// Key constraints:
//   - Annotation offsets are byte offsets into the UTF-8 encoding of Text,
//     never rune or UTF-16 indices.
//   - Embed is a sealed sum type. Consumers switch over the concrete
//     variants and must tolerate UnknownEmbed.
//   - SourceItem.ID is the identity key for dedupe and never changes.
package post
