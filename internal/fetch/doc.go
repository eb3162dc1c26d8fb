// Package fetch retrieves metadata trees from remote git repositories.
//
// Two caches are provided:
//
//   - Clone keeps one clone per destination directory. Remote plan imports
//     use a destination below the run workdir, so repeated resolution within a
//     run reuses the same checkout. Callers serialize access to a destination.
//
//   - FetchCached keeps one clone per url and ref below the configured cache
//     directory and memoizes the loaded trees in memory. Concurrent requests
//     for the same url, ref and path share a single fetch.
package fetch
