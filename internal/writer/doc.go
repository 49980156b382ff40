// Package writer hands trades from producers to a storage sink in the
// background.
//
// Poll loops call Enqueue once per cycle; each window is written with a single
// SaveTrades call, and when too many windows are pending the oldest is dropped
// whole. The live collector calls EnqueueTrades; those trades are batched and
// flushed on size or interval. Sinks are idempotent, so the overlapping
// windows a poll loop submits every cycle only insert the trades not seen
// before.
package writer
