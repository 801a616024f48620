// Package pipeline turns a compiled wasm module, a logo and the two page
// templates into a content-addressed static site plus its archive.
//
// A run is strictly ordered: the output directory is cleared first, the
// module hash and icon sets are produced concurrently, the service worker is
// injected, minified and hashed, the HTML shell is injected from all of the
// above, every artifact is written, and finally the directory is archived.
// The first failure cancels the run and is returned as a *StageError.
package pipeline
