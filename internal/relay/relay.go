// Package relay delivers plain-text notifications to a tenant's configured
// channel address. Delivery is best-effort; there is no receipt guarantee.
package relay

import "context"

// Relay sends a text payload to a channel address.
type Relay interface {
	Send(ctx context.Context, channelAddress, text string) error
}
