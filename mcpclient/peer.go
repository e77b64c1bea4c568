package mcpclient

import (
	"context"
	"fmt"
)

// Peer adapts a connected Client to agent.CapabilityPeer.
type Peer struct {
	client *Client
}

// NewPeer wraps a connected client.
func NewPeer(client *Client) *Peer {
	return &Peer{client: client}
}

// Invoke runs the named tool and returns its flattened text result. A
// result flagged IsError by the server comes back as an error so the
// engine records it as a failed call.
func (p *Peer) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := p.client.CallTool(ctx, name, args)
	if err != nil {
		return "", err
	}

	text := ToolResultAsString(result)
	if result.IsError {
		return "", fmt.Errorf("%s", text)
	}
	return text, nil
}
