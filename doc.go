/*
TinyBulk is a client-side bulk transaction engine for ordered key/value stores
that expose bounded-duration, optimistic-concurrency transactions. Such stores
commit or reject each transaction atomically, and reject any transaction that
runs longer or buffers more than a hard ceiling; moving millions of keys
through them safely means chunking, retrying, and adapting.

The module is organized into the following packages:

  - kv/storage: the interfaces TinyBulk consumes from a store (transactions,
    key ranges, error classification). The storage engine itself is an
    external collaborator.
  - kv/storage/memstore: an in-memory implementation of those interfaces
    with real conflict detection and transaction ceilings, used by the tests
    and by bulkbench.
  - kv/bulk: the engine itself: retryable transaction execution, the adaptive
    generation controller, and the bulk operations (write, for-each, fold,
    aggregate, export) built on it.
  - config: tuning defaults, toml-loadable.
  - log: the leveled logger shared by all packages.
  - cmd/bulkbench: a benchmark/stress driver.
*/
package tinybulk
