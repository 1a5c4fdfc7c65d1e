// manager.go
// Broadcasting. Every message goes to every registered client, the sender included.
// Messages are queued, never written inline: the receive loop that called broadcast
// must not wait on anyone else's socket.

package main

// broadcast queues message on every client in a single registry snapshot and
// returns how many clients it was queued for. A client whose queue is full is
// torn down as a slow consumer; the rest of the snapshot still gets the
// message. Clients registered after the snapshot is taken miss it.
func (r *Relay) broadcast(message []byte, sender *Client) int {
	queued := 0
	for _, conn := range r.manager.snapshot() {
		if conn == sender && !r.cfg.Echo {
			continue
		}

		if conn.isClosed() {
			continue
		}

		select {
		case conn.send <- message:
			queued++
		default:
			conn.close(errSlowConsumer)
		}
	}
	return queued
}
