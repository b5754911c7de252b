// Package bulk moves large logical datasets through a bounded-transaction
// ordered KV store.
//
// The store commits or rejects a transaction atomically, and rejects any
// transaction that runs too long or buffers too much. Feeding millions of
// keys through that interface therefore means slicing the input into chunks,
// committing each chunk in its own transaction, retrying transient failures,
// and resizing chunks when the store pushes back.
//
// The package is built in three layers:
//
//   - Executor runs one unit of work inside one transaction, retrying
//     classified-retryable failures against the same transaction identity.
//   - The generation controller drives a cursor over the input, one chunk per
//     "generation", adapting chunk size and inter-generation cooldown to the
//     observed behavior of the store.
//   - The operations (Write, ForEach, ForEachBatch, Fold, Aggregate,
//     ExportRange) are thin policies over the controller. Their caller-visible
//     accumulators and progress callbacks reflect only committed generations.
//
// Chunks are processed strictly in cursor order; one operation never runs two
// generations concurrently. Independent operations may run concurrently
// against the same store. For fan-out across workers, Partitioner hands out
// disjoint sub-ranges from a shared atomic cursor.
package bulk
