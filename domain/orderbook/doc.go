// Package orderbook keeps resting limit orders grouped into price
// levels. Bids and asks each live in a red-black tree keyed by price,
// and an id index resolves any order to its level in constant time.
//
// The book never matches; it only records what the feed reports.
package orderbook
