// Package ring implements the token relay run by every node of a chain.
package ring

// Nodes are wired in a ring: each node's transmit line feeds the next
// node's receive line. The head node waits for a single start byte from
// an external controller, emits the token, and from then on every node
// relays whatever single byte it receives:
//
//   Idle -> TokenSent (head only) -> Armed -> Processing -> Armed -> ...
//
// There is no acknowledgement, framing or retry. A byte arriving while a
// node is processing is dropped by the channel, and a node that fails to
// re-arm stops relaying for good.
