// Package rendercache stores rendered situation images keyed by
// (bake group, partition, situation).
//
// Images live as 16-bit PNG files under the cache directory; a SQLite index
// records each entry with the digest of the inputs that produced it. Writes
// are atomic (temp file, fsync, rename, then index upsert) so readers never
// observe a partial entry, and a lock file keeps two batches from writing
// the same cache. Entries are never invalidated implicitly: callers detect
// stale digests and use the invalidation hooks.
package rendercache
