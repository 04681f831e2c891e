package bluesky

import (
	"errors"
	"fmt"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	lexutil "github.com/bluesky-social/indigo/lex/util"

	"github.com/hossain-khan/social-sync/internal/post"
)

func convertPost(pv *bsky.FeedDefs_PostView) (post.SourceItem, error) {
	rec, err := feedPost(pv.Record)
	if err != nil {
		return post.SourceItem{}, err
	}
	if pv.Author == nil {
		return post.SourceItem{}, errors.New("post view has no author")
	}

	item := post.SourceItem{
		ID:           pv.Uri,
		CID:          pv.Cid,
		Text:         rec.Text,
		CreatedAt:    parseTime(rec.CreatedAt, pv.IndexedAt),
		AuthorID:     pv.Author.Did,
		AuthorHandle: pv.Author.Handle,
		Annotations:  convertFacets(rec.Facets),
		SelfLabels:   selfLabels(rec.Labels, pv.Labels, pv.Author.Did),
		Languages:    rec.Langs,
	}
	if rec.Reply != nil {
		if rec.Reply.Parent != nil {
			item.ParentID = rec.Reply.Parent.Uri
		}
		if rec.Reply.Root != nil {
			item.RootID = rec.Reply.Root.Uri
		}
	}
	if e := pv.Embed; e != nil {
		item.Embed = convertEmbed(e.EmbedImages_View, e.EmbedExternal_View, e.EmbedRecord_View, e.EmbedRecordWithMedia_View, e.EmbedVideo_View)
	}
	return item, nil
}

func feedPost(d *lexutil.LexiconTypeDecoder) (*bsky.FeedPost, error) {
	if d == nil || d.Val == nil {
		return nil, errors.New("post view has no record")
	}
	rec, ok := d.Val.(*bsky.FeedPost)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", d.Val)
	}
	return rec, nil
}

// parseTime reads the record timestamp and falls back to the index time.
func parseTime(created, indexed string) time.Time {
	for _, s := range []string{created, indexed} {
		if s == "" {
			continue
		}
		if dt, err := syntax.ParseDatetimeLenient(s); err == nil {
			return dt.Time().UTC()
		}
	}
	return time.Time{}
}

func convertFacets(facets []*bsky.RichtextFacet) []post.Annotation {
	var out []post.Annotation
	for _, f := range facets {
		if f == nil || f.Index == nil {
			continue
		}
		start, end := int(f.Index.ByteStart), int(f.Index.ByteEnd)
		for _, feat := range f.Features {
			if feat == nil {
				continue
			}
			switch {
			case feat.RichtextFacet_Link != nil:
				out = append(out, post.Annotation{Start: start, End: end, Kind: post.AnnotationLink, URI: feat.RichtextFacet_Link.Uri})
			case feat.RichtextFacet_Mention != nil:
				out = append(out, post.Annotation{Start: start, End: end, Kind: post.AnnotationMention, URI: feat.RichtextFacet_Mention.Did})
			case feat.RichtextFacet_Tag != nil:
				out = append(out, post.Annotation{Start: start, End: end, Kind: post.AnnotationTag, URI: feat.RichtextFacet_Tag.Tag})
			}
		}
	}
	return out
}

// selfLabels merges record self-labels with view labels the author applied.
func selfLabels(rec *bsky.FeedPost_Labels, view []*comatproto.LabelDefs_Label, author string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}
	if rec != nil && rec.LabelDefs_SelfLabels != nil {
		for _, l := range rec.LabelDefs_SelfLabels.Values {
			if l != nil {
				add(l.Val)
			}
		}
	}
	for _, l := range view {
		if l != nil && l.Src == author && (l.Neg == nil || !*l.Neg) {
			add(l.Val)
		}
	}
	return out
}

func convertEmbed(
	images *bsky.EmbedImages_View,
	external *bsky.EmbedExternal_View,
	record *bsky.EmbedRecord_View,
	withMedia *bsky.EmbedRecordWithMedia_View,
	video *bsky.EmbedVideo_View,
) post.Embed {
	switch {
	case images != nil:
		return convertImages(images)
	case external != nil:
		if external.External == nil {
			return nil
		}
		return post.ExternalLink{
			URI:         external.External.Uri,
			Title:       external.External.Title,
			Description: external.External.Description,
		}
	case record != nil:
		if q, ok := convertQuote(record); ok {
			return q
		}
		return post.UnknownEmbed{Type: recordViewType(record)}
	case withMedia != nil:
		var media post.ImageSet
		if withMedia.Media != nil && withMedia.Media.EmbedImages_View != nil {
			media = convertImages(withMedia.Media.EmbedImages_View)
		}
		q, ok := convertQuote(withMedia.Record)
		switch {
		case ok && len(media.Images) > 0:
			return post.QuoteWithMedia{Quote: q, Media: media}
		case ok:
			return q
		case len(media.Images) > 0:
			return media
		}
		return post.UnknownEmbed{Type: "app.bsky.embed.recordWithMedia"}
	case video != nil:
		return post.UnknownEmbed{Type: "app.bsky.embed.video"}
	}
	return nil
}

func convertImages(v *bsky.EmbedImages_View) post.ImageSet {
	var set post.ImageSet
	for _, img := range v.Images {
		if img == nil {
			continue
		}
		set.Images = append(set.Images, post.Image{
			Ref: img.Fullsize,
			URL: img.Fullsize,
			Alt: img.Alt,
		})
		if len(set.Images) == post.MaxImages {
			break
		}
	}
	return set
}

func convertQuote(v *bsky.EmbedRecord_View) (post.QuoteRecord, bool) {
	if v == nil || v.Record == nil || v.Record.EmbedRecord_ViewRecord == nil {
		return post.QuoteRecord{}, false
	}
	vr := v.Record.EmbedRecord_ViewRecord
	q := post.QuoteRecord{ID: vr.Uri}
	if vr.Author != nil {
		q.AuthorID = vr.Author.Did
		q.AuthorHandle = vr.Author.Handle
	}
	if rec, err := feedPost(vr.Value); err == nil {
		q.Text = rec.Text
	}
	for _, e := range vr.Embeds {
		if e == nil {
			continue
		}
		q.Embed = convertEmbed(e.EmbedImages_View, e.EmbedExternal_View, e.EmbedRecord_View, e.EmbedRecordWithMedia_View, e.EmbedVideo_View)
		break
	}
	return q, true
}

func recordViewType(v *bsky.EmbedRecord_View) string {
	if v == nil || v.Record == nil {
		return "app.bsky.embed.record"
	}
	switch {
	case v.Record.EmbedRecord_ViewNotFound != nil:
		return "app.bsky.embed.record#viewNotFound"
	case v.Record.EmbedRecord_ViewBlocked != nil:
		return "app.bsky.embed.record#viewBlocked"
	case v.Record.EmbedRecord_ViewDetached != nil:
		return "app.bsky.embed.record#viewDetached"
	}
	return "app.bsky.embed.record"
}
