// Package fetcher builds trade windows by paging backward through trade history.
//
// Pagination:
//   - The first request has no fromId and returns the most recent page
//   - Each later request starts pageSize ids below the oldest id seen so far
//   - Stops on an empty page, on a page reaching past the lookback boundary,
//     or when the per-cycle page budget is spent (partial window)
//   - Requests are paced with a fixed minimum spacing
//
// Pages overlap and overshoot the boundary; the window is deduplicated by
// trade id and trimmed to [Start, End) after accumulation.
package fetcher
