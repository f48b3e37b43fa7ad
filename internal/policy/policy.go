// Package policy holds the sender whitelist that gates every question
// before any schema, model, or database work happens.
package policy

import "strings"

// Policy answers two questions about a sender: may they ask at all, and
// may their questions run write statements. Senders are opaque string IDs
// so the transport can use whatever identifier it has.
type Policy struct {
	openAccess bool
	allowed    map[string]struct{}
	write      map[string]struct{}
}

// Parse builds a Policy from comma-separated sender lists. Blank entries
// are ignored. With openAccess set, every sender is authorized but write
// access still requires an explicit entry.
func Parse(allowedSpec, writeSpec string, openAccess bool) *Policy {
	return &Policy{
		openAccess: openAccess,
		allowed:    parseList(allowedSpec),
		write:      parseList(writeSpec),
	}
}

func (p *Policy) Authorized(sender string) bool {
	if p.openAccess {
		return true
	}
	_, ok := p.allowed[sender]
	return ok
}

func (p *Policy) WriteAllowed(sender string) bool {
	_, ok := p.write[sender]
	return ok
}

// AllowedCount reports how many senders are explicitly whitelisted.
func (p *Policy) AllowedCount() int {
	return len(p.allowed)
}

func parseList(spec string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(spec, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}
