package post

import "time"

// SourceItem is one post fetched from the source platform.
type SourceItem struct {
	ID           string       `json:"id"`  // AT-URI, stable and globally unique
	CID          string       `json:"cid"` // content hash reported by the source
	Text         string       `json:"text"`
	CreatedAt    time.Time    `json:"created_at"`
	AuthorID     string       `json:"author_id"` // DID
	AuthorHandle string       `json:"author_handle"`
	ParentID     string       `json:"parent_id,omitempty"` // empty when not a reply
	RootID       string       `json:"root_id,omitempty"`
	Annotations  []Annotation `json:"annotations,omitempty"`
	Embed        Embed        `json:"-"`
	SelfLabels   []string     `json:"self_labels,omitempty"`
	Languages    []string     `json:"languages,omitempty"`
}

// IsReply reports whether the item references a parent post.
func (s SourceItem) IsReply() bool {
	return s.ParentID != ""
}

// AnnotationKind tags what an annotated byte range represents.
type AnnotationKind string

const (
	AnnotationLink    AnnotationKind = "link"
	AnnotationMention AnnotationKind = "mention"
	AnnotationTag     AnnotationKind = "tag"
)

// Annotation marks the byte range [Start, End) of SourceItem.Text.
// URI carries the full target for links whose visible text is truncated.
type Annotation struct {
	Start int            `json:"start"`
	End   int            `json:"end"`
	Kind  AnnotationKind `json:"kind"`
	URI   string         `json:"uri,omitempty"`
}

// Image references one image attached to a post.
type Image struct {
	Ref      string `json:"ref,omitempty"` // blob CID
	URL      string `json:"url,omitempty"` // fetchable full-size URL
	MimeType string `json:"mime_type,omitempty"`
	Alt      string `json:"alt,omitempty"`
}

// Draft is the payload handed to the destination for publishing.
type Draft struct {
	Text        string
	InReplyToID string
	MediaIDs    []string
	Sensitive   bool
	SpoilerText string
	Language    string
}

// DestinationItem is the result of a successful publish call.
type DestinationItem struct {
	ID          string   `json:"id"`
	InReplyToID string   `json:"in_reply_to_id,omitempty"`
	Text        string   `json:"text"`
	MediaIDs    []string `json:"media_ids,omitempty"`
	Sensitive   bool     `json:"sensitive"`
	SpoilerText string   `json:"spoiler_text,omitempty"`
	Language    string   `json:"language,omitempty"`
	URL         string   `json:"url,omitempty"`
}
