package notification

import (
	"context"
	"strings"
)

// ChannelSender delivers a message over one channel.
type ChannelSender interface {
	Send(ctx context.Context, msg Message) error
}

type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Directory resolves recipient roles to channel addresses. A recipient with
// no entry is used as the address itself.
type Directory map[string][]string

func (d Directory) Resolve(recipients []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(recipients))
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return
		}
		if _, dup := seen[addr]; dup {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	for _, r := range recipients {
		if addrs, ok := d[r]; ok {
			for _, a := range addrs {
				add(a)
			}
			continue
		}
		add(r)
	}
	return out
}
