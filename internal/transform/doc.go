// Package transform turns a source post into destination-ready content.
//
// The pipeline runs in a fixed order:
//
//  1. Expand display-truncated link spans by slicing the UTF-8 byte buffer.
//  2. Render the embed (link card, image placeholder, quotes) as text.
//  3. Derive a content warning from self-labels.
//  4. Enforce the destination character limit.
//  5. Append the attribution suffix when it fits.
//  6. Pick the post language.
//
// Transform is pure: the same item and limit always produce the same Content.
// Malformed input never panics; bad spans and unknown embeds are logged and
// dropped.
package transform
