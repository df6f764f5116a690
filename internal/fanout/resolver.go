// Package fanout turns a chat member list into the connection handles that
// should receive a live event.
package fanout

import (
	"github.com/Tyrowin/chatrelay/internal/domain"
	"github.com/Tyrowin/chatrelay/internal/registry"
	"github.com/samber/lo"
)

// Lookuper resolves user ids to bound handles, skipping ids with no binding.
type Lookuper interface {
	Lookup(ids ...domain.UserID) []registry.Handle
}

type Resolver struct {
	conns Lookuper
}

func NewResolver(conns Lookuper) *Resolver {
	return &Resolver{conns: conns}
}

// ResolveTargets returns the handles of the connected members, minus any
// excluded ids. Members without a live connection are dropped: delivery is
// best effort and a miss is not an error.
func (r *Resolver) ResolveTargets(members []domain.Member, exclude ...domain.UserID) []registry.Handle {
	ids := lo.Uniq(domain.MemberIDs(members))
	if len(exclude) > 0 {
		ids = lo.Without(ids, exclude...)
	}
	ids = lo.Compact(ids)
	if len(ids) == 0 {
		return nil
	}
	return r.conns.Lookup(ids...)
}
