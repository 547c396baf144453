// Package serial provides the byte channel between neighbouring nodes.
package serial

// A Channel is a raw byte stream: no framing, no parity beyond the 8N1
// line settings, no acknowledgement. It behaves like a UART peripheral
// with a single receive slot. At most one receive (blocking or
// asynchronous) is outstanding at a time, and bytes arriving while the
// slot is empty are dropped the same way an overrun UART drops them.
