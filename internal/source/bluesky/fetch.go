package bluesky

import (
	"context"
	"fmt"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"

	"github.com/hossain-khan/social-sync/internal/engine"
	"github.com/hossain-khan/social-sync/internal/ledger"
	"github.com/hossain-khan/social-sync/internal/post"
	"github.com/hossain-khan/social-sync/internal/thread"
)

const (
	maxPageSize = 100
	maxPages    = 5
)

// Fetch pages the author feed newest first until it has opts.Limit
// candidates, runs out of pages, or reaches posts older than opts.Since.
// Excluded posts are returned in FetchResult.Filtered with a reason.
func (c *Client) Fetch(ctx context.Context, opts engine.FetchOptions) (*engine.FetchResult, error) {
	if c.did == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = engine.DefaultMaxPosts
	}
	pageSize := int64(min(limit*2, maxPageSize))

	res := &engine.FetchResult{}
	cursor := ""
	retrieved := 0
	for page := 0; page < maxPages; page++ {
		out, err := bsky.FeedGetAuthorFeed(ctx, c.xrpc, c.did, cursor, "posts_with_replies", false, pageSize)
		if err != nil {
			return nil, engine.Transient(fmt.Errorf("bluesky: get author feed: %w", err))
		}
		retrieved += len(out.Feed)

		reachedCutoff := false
		for _, fv := range out.Feed {
			item, f, ok := c.classify(fv, opts.Since)
			switch {
			case f != nil:
				res.Filtered = append(res.Filtered, *f)
				if f.Reason == ledger.ReasonOlderThanSyncDate {
					reachedCutoff = true
				}
			case ok:
				res.Items = append(res.Items, item)
			}
			if len(res.Items) >= limit {
				break
			}
		}

		if len(res.Items) >= limit || reachedCutoff || out.Cursor == nil || *out.Cursor == "" {
			break
		}
		cursor = *out.Cursor
	}

	c.logger.Info("fetched posts",
		"retrieved", retrieved,
		"candidates", len(res.Items),
		"filtered", len(res.Filtered),
		"since", opts.Since.Format(time.RFC3339),
	)
	return res, nil
}

// classify decides whether a feed entry is a candidate, filtered, or
// unusable. Unusable entries (ok false, f nil) are dropped with a log line.
func (c *Client) classify(fv *bsky.FeedDefs_FeedViewPost, since time.Time) (post.SourceItem, *engine.Filtered, bool) {
	if fv == nil || fv.Post == nil {
		return post.SourceItem{}, nil, false
	}
	pv := fv.Post

	if fv.Reason != nil && fv.Reason.FeedDefs_ReasonRepost != nil {
		// The repost record has its own URI; the reposted post may be ours
		// and still unsynced, so its URI is never marked.
		if uri := fv.Reason.FeedDefs_ReasonRepost.Uri; uri != nil && *uri != "" {
			return post.SourceItem{}, &engine.Filtered{ID: *uri, Reason: ledger.ReasonRepost}, false
		}
		c.logger.Debug("dropping repost without record uri", "uri", pv.Uri)
		return post.SourceItem{}, nil, false
	}

	item, err := convertPost(pv)
	if err != nil {
		c.logger.Warn("dropping unreadable post", "uri", pv.Uri, "error", err)
		return post.SourceItem{}, nil, false
	}

	if item.IsReply() && !c.ownThread(item.RootID) {
		c.logger.Debug("filtered reply in another author's thread", "uri", item.ID, "root", item.RootID)
		return post.SourceItem{}, &engine.Filtered{ID: item.ID, Reason: ledger.ReasonReplyNotSelfThreaded}, false
	}

	if c.skipQuotes && c.quotesOther(item.Embed) {
		return post.SourceItem{}, &engine.Filtered{ID: item.ID, Reason: ledger.ReasonQuoteOfOther}, false
	}

	if !since.IsZero() && item.CreatedAt.Before(since) {
		return post.SourceItem{}, &engine.Filtered{ID: item.ID, Reason: ledger.ReasonOlderThanSyncDate}, false
	}
	return item, nil, true
}

func (c *Client) ownThread(rootID string) bool {
	if rootID == "" {
		return true
	}
	author, ok := thread.AuthorOf(rootID)
	return ok && author == c.did
}

func (c *Client) quotesOther(e post.Embed) bool {
	var q post.QuoteRecord
	switch v := e.(type) {
	case post.QuoteRecord:
		q = v
	case post.QuoteWithMedia:
		q = v.Quote
	default:
		return false
	}
	return q.AuthorID != "" && q.AuthorID != c.did
}
