// Package service runs the market-data pipeline.
//
// Two goroutines cooperate. Ingestion polls the ports, reassembles
// frames into messages and pushes them onto a single-producer
// single-consumer ring. Processing drains the ring into the order book,
// journals what it applied and runs the spread strategy, whose orders
// go back out through the port or, in loopback mode, straight back into
// ingestion.
package service
