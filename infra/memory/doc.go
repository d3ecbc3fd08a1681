// Package memory provides the allocation-free building blocks of the
// hot path: the single-producer single-consumer Ring that hands market
// data from ingestion to processing, and typed pools used to recycle
// frame buffers.
package memory
