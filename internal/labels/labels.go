// Package labels maps addresses to human-friendly names using an ordered
// list of prefix rules. The first matching rule wins, not the most specific.
package labels

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coral-mesh/whotalks/internal/sockets"
)

// Rule labels every address starting with Pattern.
type Rule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Label   string `yaml:"label" json:"label"`
}

// Matches reports whether the rule applies to addr.
func (r Rule) Matches(addr string) bool {
	return strings.HasPrefix(addr, r.Pattern)
}

// Resolver resolves a hostname to its addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Labeler holds the ordered rule list for one run.
type Labeler struct {
	rules []Rule
}

// New builds a labeler whose rules are tried in the given order.
func New(rules ...[]Rule) *Labeler {
	var all []Rule
	for _, set := range rules {
		all = append(all, set...)
	}
	return &Labeler{rules: all}
}

// Rules returns a copy of the ordered rule list.
func (l *Labeler) Rules() []Rule {
	return append([]Rule(nil), l.rules...)
}

// Label returns the label of the first rule matching addr, or addr itself.
// Listening keys are never matched against address rules.
func (l *Labeler) Label(addr string) string {
	if port, ok := sockets.ListeningPort(addr); ok {
		return "listening on " + strconv.Itoa(port)
	}

	for _, r := range l.rules {
		if r.Matches(addr) {
			return r.Label
		}
	}
	return addr
}

// Build resolves hostnames and returns a labeler whose resolved rules come
// before the static table. Each resolved address becomes an exact-prefix rule
// labeled with its hostname. Hostnames that fail to resolve are skipped.
func Build(ctx context.Context, resolver Resolver, static []Rule, hostnames []string, logger zerolog.Logger) *Labeler {
	return New(Resolve(ctx, resolver, hostnames, logger), static)
}

// Resolve looks up hostnames in parallel and returns their rules in hostname order.
func Resolve(ctx context.Context, resolver Resolver, hostnames []string, logger zerolog.Logger) []Rule {
	if resolver == nil || len(hostnames) == 0 {
		return nil
	}

	resolved := make([][]string, len(hostnames))

	g, gctx := errgroup.WithContext(ctx)
	for i, host := range hostnames {
		g.Go(func() error {
			addrs, err := resolver.LookupHost(gctx, host)
			if err != nil {
				logger.Debug().Err(err).Str("host", host).Msg("Hostname did not resolve, no label rule added")
				return nil
			}
			resolved[i] = addrs
			return nil
		})
	}
	_ = g.Wait()

	var rules []Rule
	for i, host := range hostnames {
		for _, addr := range resolved[i] {
			rules = append(rules, Rule{Pattern: ssAddress(addr), Label: host})
		}
	}
	return rules
}

// ssAddress brackets IPv6 addresses the way ss prints them.
func ssAddress(addr string) string {
	if strings.Contains(addr, ":") {
		return "[" + addr + "]"
	}
	return addr
}
