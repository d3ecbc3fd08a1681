// Package kafka wraps segmentio/kafka-go with the two shapes the packet
// path needs: a producer that ships raw frames and a consumer that
// yields them back one message value at a time.
package kafka
