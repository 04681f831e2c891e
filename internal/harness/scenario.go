package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hossain-khan/social-sync/internal/engine"
	"github.com/hossain-khan/social-sync/internal/ledger"
	"github.com/hossain-khan/social-sync/internal/post"
)

// Account is the DID the scenario's own posts are authored by.
const Account = "did:plc:me"

// AccountHandle is the handle of Account.
const AccountHandle = "me.bsky.social"

// Scenario describes one sync situation and what must come out of it.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Options     Options         `yaml:"options"`
	Existing    Existing        `yaml:"existing"`
	Items       []ItemSpec      `yaml:"items"`
	Filtered    []FilteredSpec  `yaml:"filtered"`
	Destination DestinationSpec `yaml:"destination"`
	Assertions  []Assertion     `yaml:"assertions"`
}

// Options tune the engine for the scenario.
type Options struct {
	// Runs is how many times the engine runs over the same timeline.
	// Zero means one.
	Runs int `yaml:"runs"`

	DryRun           bool   `yaml:"dry_run"`
	MaxPosts         int    `yaml:"max_posts"`
	MediaStrategy    string `yaml:"media_strategy"`
	Attribution      bool   `yaml:"attribution"`
	OptOutTag        string `yaml:"opt_out_tag"`
	BreakerThreshold uint32 `yaml:"breaker_threshold"`
}

// Existing seeds the ledger before the first run.
type Existing struct {
	Synced  []RecordSpec `yaml:"synced"`
	Skipped []RecordSpec `yaml:"skipped"`
}

// RecordSpec is one seeded ledger record.
type RecordSpec struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination,omitempty"`
	Reason      string `yaml:"reason,omitempty"`
}

// ItemSpec is one post on the source timeline.
type ItemSpec struct {
	ID           string      `yaml:"id"`
	Text         string      `yaml:"text"`
	Author       string      `yaml:"author,omitempty"`
	MinutesAgo   int         `yaml:"minutes_ago"`
	Parent       string      `yaml:"parent,omitempty"`
	ParentAuthor string      `yaml:"parent_author,omitempty"`
	Root         string      `yaml:"root,omitempty"`
	Labels       []string    `yaml:"labels,omitempty"`
	Langs        []string    `yaml:"langs,omitempty"`
	Images       []ImageSpec `yaml:"images,omitempty"`
	Link         *LinkSpec   `yaml:"link,omitempty"`
	Quote        *QuoteSpec  `yaml:"quote,omitempty"`
}

// ImageSpec is one attached image. Ref is what download failures key on.
type ImageSpec struct {
	Ref string `yaml:"ref"`
	Alt string `yaml:"alt,omitempty"`
}

// LinkSpec is a link card.
type LinkSpec struct {
	URI         string `yaml:"uri"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// QuoteSpec is a quoted post.
type QuoteSpec struct {
	ID     string `yaml:"id"`
	Author string `yaml:"author,omitempty"`
	Handle string `yaml:"handle,omitempty"`
	Text   string `yaml:"text,omitempty"`
}

// FilteredSpec is an item the source drops before the engine sees it.
type FilteredSpec struct {
	ID     string `yaml:"id"`
	Reason string `yaml:"reason"`
}

// DestinationSpec scripts platform failures.
type DestinationSpec struct {
	// Limit is the character limit the destination reports. Zero means 500.
	Limit int `yaml:"limit"`

	// Publish is consumed one entry per publish attempt.
	Publish []string `yaml:"publish"`

	// Upload is consumed one entry per media upload attempt.
	Upload []string `yaml:"upload"`

	// DownloadFailures fails the first N downloads of an image ref; -1
	// fails them all.
	DownloadFailures map[string]int `yaml:"download_failures"`
}

// Script entries for DestinationSpec.Publish and Upload.
const (
	ScriptOK        = "ok"
	ScriptTransient = "transient"
	ScriptRejected  = "rejected"
	ScriptFailed    = "failed"
)

// Assertion checks the outcome of a scenario.
type Assertion struct {
	Type        string   `yaml:"type"`
	Source      string   `yaml:"source,omitempty"`
	Destination string   `yaml:"destination,omitempty"`
	Reason      string   `yaml:"reason,omitempty"`
	Outcome     string   `yaml:"outcome,omitempty"`
	Parent      string   `yaml:"parent,omitempty"`
	Count       int      `yaml:"count,omitempty"`
	Sources     []string `yaml:"sources,omitempty"`
}

// Assertion type constants.
const (
	AssertSynced       = "synced"
	AssertSkipped      = "skipped"
	AssertUnsynced     = "unsynced"
	AssertOutcome      = "outcome"
	AssertReplyTo      = "reply_to"
	AssertPublishCount = "publish_count"
	AssertPublishOrder = "publish_order"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.Options.Runs < 0 {
		errs = append(errs, fmt.Errorf("options.runs must not be negative, got %d", s.Options.Runs))
	}
	if _, ok := engine.ParseMediaStrategy(s.Options.MediaStrategy); !ok {
		errs = append(errs, fmt.Errorf("options.media_strategy: unknown strategy %q", s.Options.MediaStrategy))
	}

	seen := map[string]bool{}
	for i, item := range s.Items {
		if item.ID == "" {
			errs = append(errs, fmt.Errorf("items[%d]: id is required", i))
			continue
		}
		if seen[item.ID] {
			errs = append(errs, fmt.Errorf("items[%d]: duplicate id %q", i, item.ID))
		}
		seen[item.ID] = true
		if len(item.Images) > post.MaxImages {
			errs = append(errs, fmt.Errorf("items[%d]: at most %d images, got %d", i, post.MaxImages, len(item.Images)))
		}
	}
	for i, f := range s.Filtered {
		if f.ID == "" || f.Reason == "" {
			errs = append(errs, fmt.Errorf("filtered[%d]: id and reason are required", i))
		}
	}
	for i, r := range s.Existing.Synced {
		if r.Source == "" || r.Destination == "" {
			errs = append(errs, fmt.Errorf("existing.synced[%d]: source and destination are required", i))
		}
	}
	for i, r := range s.Existing.Skipped {
		if r.Source == "" || r.Reason == "" {
			errs = append(errs, fmt.Errorf("existing.skipped[%d]: source and reason are required", i))
		}
	}
	for field, script := range map[string][]string{"publish": s.Destination.Publish, "upload": s.Destination.Upload} {
		for i, entry := range script {
			if _, ok := scriptError(entry); !ok {
				errs = append(errs, fmt.Errorf("destination.%s[%d]: unknown script entry %q", field, i, entry))
			}
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertSynced, AssertSkipped, AssertUnsynced:
		if a.Source == "" {
			return fmt.Errorf("%s requires source", a.Type)
		}
	case AssertOutcome:
		if a.Source == "" || a.Outcome == "" {
			return errors.New("outcome requires source and outcome")
		}
	case AssertReplyTo:
		if a.Source == "" || a.Parent == "" {
			return errors.New("reply_to requires source and parent")
		}
	case AssertPublishCount:
	case AssertPublishOrder:
		if len(a.Sources) == 0 {
			return errors.New("publish_order requires sources")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// scriptError maps a script entry to the error the fake destination
// returns. ok is false for an unknown entry.
func scriptError(entry string) (injected error, ok bool) {
	switch entry {
	case ScriptOK, "":
		return nil, true
	case ScriptTransient:
		return engine.Transient(errors.New("connection refused")), true
	case ScriptRejected:
		return engine.Content(errors.New("422 validation failed")), true
	case ScriptFailed:
		return errors.New("500 internal server error"), true
	}
	return nil, false
}

// ExpandID turns a record key into the AT-URI of a post by author. Full
// AT-URIs pass through.
func ExpandID(id, author string) string {
	if id == "" || strings.HasPrefix(id, "at://") {
		return id
	}
	return "at://" + authorDID(author) + "/app.bsky.feed.post/" + id
}

// ShortID is the inverse of ExpandID for the account's own posts.
func ShortID(id string) string {
	return strings.TrimPrefix(id, "at://"+Account+"/app.bsky.feed.post/")
}

func authorDID(name string) string {
	switch {
	case name == "":
		return Account
	case strings.HasPrefix(name, "did:"):
		return name
	}
	return "did:plc:" + name
}

func (s ItemSpec) toSourceItem(now time.Time) post.SourceItem {
	author := authorDID(s.Author)
	item := post.SourceItem{
		ID:           ExpandID(s.ID, author),
		CID:          "cid-" + s.ID,
		Text:         s.Text,
		CreatedAt:    now.Add(-time.Duration(s.MinutesAgo) * time.Minute),
		AuthorID:     author,
		AuthorHandle: AccountHandle,
		SelfLabels:   s.Labels,
		Languages:    s.Langs,
	}
	if s.Parent != "" {
		item.ParentID = ExpandID(s.Parent, s.ParentAuthor)
		item.RootID = item.ParentID
		if s.Root != "" {
			item.RootID = ExpandID(s.Root, s.ParentAuthor)
		}
	}

	var images []post.Image
	for _, img := range s.Images {
		images = append(images, post.Image{
			Ref:      img.Ref,
			URL:      "https://cdn.example.com/img/" + img.Ref,
			MimeType: "image/jpeg",
			Alt:      img.Alt,
		})
	}
	var quote *post.QuoteRecord
	if s.Quote != nil {
		qa := authorDID(s.Quote.Author)
		quote = &post.QuoteRecord{
			ID:           ExpandID(s.Quote.ID, qa),
			AuthorID:     qa,
			AuthorHandle: s.Quote.Handle,
			Text:         s.Quote.Text,
		}
	}

	switch {
	case quote != nil && len(images) > 0:
		item.Embed = post.QuoteWithMedia{Quote: *quote, Media: post.ImageSet{Images: images}}
	case quote != nil:
		item.Embed = *quote
	case len(images) > 0:
		item.Embed = post.ImageSet{Images: images}
	case s.Link != nil:
		item.Embed = post.ExternalLink{URI: s.Link.URI, Title: s.Link.Title, Description: s.Link.Description}
	}
	return item
}

func (e Existing) toLedger(at time.Time) (*ledger.Ledger, error) {
	l := ledger.New()
	for _, r := range e.Synced {
		if err := l.RecordSynced(ExpandID(r.Source, ""), r.Destination, at); err != nil {
			return nil, err
		}
	}
	for _, r := range e.Skipped {
		if err := l.RecordSkipped(ExpandID(r.Source, ""), r.Reason, at); err != nil {
			return nil, err
		}
	}
	return l, nil
}
