// Package thread decides how a source post attaches to the destination
// conversation graph.
package thread

import (
	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/hossain-khan/social-sync/internal/post"
)

// Lookup is the part of the sync ledger the resolver needs.
type Lookup interface {
	DestinationIDFor(sourceID string) (string, bool)
}

// Decision is the outcome of resolving one item.
//
//   - IsReply: publish as a reply to ParentDestinationID.
//   - Foreign: the parent belongs to another author; the item must not be
//     published.
//   - Orphaned: the item is a self-reply whose parent was never synced; it is
//     published standalone.
type Decision struct {
	IsReply             bool
	ParentDestinationID string
	Foreign             bool
	Orphaned            bool
}

// Resolver maps source reply structure onto destination ids.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the threading decision for item given the current ledger.
func (r *Resolver) Resolve(item post.SourceItem, ledger Lookup) Decision {
	if !item.IsReply() {
		return Decision{}
	}
	if author, ok := AuthorOf(item.ParentID); ok && item.AuthorID != "" && author != item.AuthorID {
		return Decision{Foreign: true}
	}
	if destID, ok := ledger.DestinationIDFor(item.ParentID); ok {
		return Decision{IsReply: true, ParentDestinationID: destID}
	}
	return Decision{Orphaned: true}
}

// AuthorOf extracts the authority (DID or handle) from an AT-URI. It
// returns false when uri is not a valid AT-URI.
func AuthorOf(uri string) (string, bool) {
	aturi, err := syntax.ParseATURI(uri)
	if err != nil {
		return "", false
	}
	return aturi.Authority().String(), true
}
