/*
Package storage provides the BoltDB-backed persistence collaborator behind
the Q-store and the task/report/asset records the scan dispatch subsystem
reads and writes.

One bucket holds each durable record type: scan_queue, tasks, reports,
assets, ca, secrets. Queue ordering is a monotonic sequence number taken from the
scan_queue bucket itself (bolt.Bucket.NextSequence), so Enqueue and
MoveToEnd both just mean "assign the next sequence number".

Cross-process write serialization, required because the supervisor process
and every handler process it forks share one store, comes from BoltDB's
own file lock rather than any in-process mutex: BoltStore is opened with a
bolt.Options.Timeout so a second process blocks briefly rather than
failing outright when the file is already locked.
*/
package storage
