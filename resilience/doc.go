// Package resilience bounds the expensive or slow steps of a login.
//
//   - Bulkhead: caps concurrent password comparisons so memory-hard
//     hashing cannot exhaust the process.
//   - Within: bounds the user lookup against storage.
//   - KeyedLimiter: per-client token buckets throttling login attempts.
//
// Nothing here retries. A rejected operation is terminal for the caller.
package resilience
