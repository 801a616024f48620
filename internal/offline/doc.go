// Package offline models the browser-side offline cache handler shipped as
// service-worker.js.
//
// A Worker owns one cache namespace, "<prefix>-<buster>", inside a shared
// CacheStorage. It moves through three states:
//
//	installing  open the namespace bucket and precache the must-have assets
//	active      serve fetches cache-first, storing successful network responses
//	updating    a new buster was handed to an active worker; the next
//	            Install/Activate cycle replaces the namespace
//
// Activation deletes every bucket that shares the prefix but is not the
// current namespace, which is how a new build invalidates old generations.
// Cached entries never expire on their own.
//
// The build uses the same machine against the output directory (FSNetwork)
// to prove every precached path resolves before an archive is produced.
package offline
