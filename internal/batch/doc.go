// Package batch collapses per-key lookups made while serving one request into
// a single bulk fetch per loader kind.
//
// A Loader collects keys from Load calls. The first time any returned Thunk
// is awaited, the loader dispatches every key collected so far in one call to
// its fetch function and hands each caller its own value. Loads issued after
// that dispatch start a new batch. Results are memoised for the lifetime of
// the loader, which is meant to be one request: loaders are created through a
// Scope carried by the request context and discarded with it.
package batch
