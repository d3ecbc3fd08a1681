package orderbook

import "testing"

func BenchmarkAddOrder(b *testing.B) {
	book := NewOrderBook()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		book.AddOrder(uint64(i), uint32(1000+i%512), 100, Side(i&1))
	}
}

func BenchmarkAddRemoveOrder(b *testing.B) {
	book := NewOrderBook()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(i)
		book.AddOrder(id, uint32(1000+i%512), 100, Buy)
		book.RemoveOrder(id)
	}
}

func BenchmarkBestBid(b *testing.B) {
	book := NewOrderBook()
	for i := 0; i < 4096; i++ {
		book.AddOrder(uint64(i), uint32(i), 1, Buy)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = book.BestBid()
	}
}
