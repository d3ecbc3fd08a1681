// Package netstack is a deliberately small stand-in for a TCP/IP stack.
//
// Frames carry a 12-byte IP header, a 12-byte TCP header and a payload.
// Each frame's payload becomes one message on its connection; there is
// no reordering, retransmission or checksum validation. Sequence and
// acknowledgement numbers are tracked only so outbound frames carry
// plausible values.
package netstack
