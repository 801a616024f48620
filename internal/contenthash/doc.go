// Package contenthash derives the content identifiers used to name
// immutable build outputs.
//
// A content identifier is the lowercase hex SHA-256 of an artifact's final
// bytes. Byte-identical artifacts always get the same identifier, so a file
// named with it can be cached forever:
//
//	module-<hash>.wasm
//	service-worker-<hash>.js
//
// Digests of different artifacts are computed independently and never combined.
package contenthash
