// Package core provides the batch-ingestion engine for merchant CSV imports.
//
// This package holds the import logic independent of any transport. It is
// driven by the HTTP API, the importctl CLI and tests without modification.
//
// # Flow
//
// A job moves through five stages:
//
//	RowParser -> Validator -> Split -> Executor -> Aggregator
//
// Rows that cannot be parsed or validated are reported and skipped. The
// valid items are split into fixed-size batches and each batch is written
// in its own transaction on a connection held for the whole job. A batch
// that fails is retried with linear backoff; once its attempts run out it
// is marked failed and the job moves on. Batches already committed are
// never undone.
//
// # Domains
//
// Each import domain is a [Pipeline] registered at init time with
// [Register]. A pipeline pairs the domain's column specs with a
// [DomainProcessor] that performs the writes:
//
//	core.Register(core.NewPipeline(
//	    core.DomainInfo{Key: "inventory", Label: "Inventory Items", Table: "inventory_items"},
//	    inventoryColumns,
//	    inventoryProcessor{},
//	))
//
// # Progress
//
// Progress events are published through a [Broadcaster] at job start,
// after every batch and at completion. [Hub] fans them out in process;
// other broadcasters can relay them across instances.
//
// # Concurrency
//
// [Service] bounds parallel jobs with a [JobLimiter]. Inside a job,
// batches run sequentially in index order.
package core
