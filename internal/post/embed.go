package post

// Embed is a sealed interface over the structured content a post can carry.
// Only ExternalLink, ImageSet, QuoteRecord, QuoteWithMedia and UnknownEmbed
// implement it.
type Embed interface {
	embed()
}

// ExternalLink is a link card.
type ExternalLink struct {
	URI         string
	Title       string
	Description string
}

func (ExternalLink) embed() {}

// MaxImages is the most images a source post can carry.
const MaxImages = 4

// ImageSet holds one to four images.
type ImageSet struct {
	Images []Image
}

func (ImageSet) embed() {}

// QuoteRecord is a quoted post. Embed is the quoted post's own embed and may
// itself be a quote.
type QuoteRecord struct {
	ID           string
	AuthorID     string
	AuthorHandle string
	Text         string
	Embed        Embed
}

func (QuoteRecord) embed() {}

// QuoteWithMedia is a quote combined with an image set.
type QuoteWithMedia struct {
	Quote QuoteRecord
	Media ImageSet
}

func (QuoteWithMedia) embed() {}

// UnknownEmbed stands in for embed kinds this module does not understand.
type UnknownEmbed struct {
	Type string
}

func (UnknownEmbed) embed() {}

// ImagesOf returns the images an embed carries directly. Images inside a
// quoted post belong to the quoted author and are not returned.
func ImagesOf(e Embed) []Image {
	switch v := e.(type) {
	case ImageSet:
		return v.Images
	case *ImageSet:
		if v == nil {
			return nil
		}
		return v.Images
	case QuoteWithMedia:
		return v.Media.Images
	case *QuoteWithMedia:
		if v == nil {
			return nil
		}
		return v.Media.Images
	default:
		return nil
	}
}

// KindOf returns a short name for the embed variant, used in logs.
func KindOf(e Embed) string {
	switch v := e.(type) {
	case nil:
		return "none"
	case ExternalLink, *ExternalLink:
		return "external"
	case ImageSet, *ImageSet:
		return "images"
	case QuoteRecord, *QuoteRecord:
		return "quote"
	case QuoteWithMedia, *QuoteWithMedia:
		return "quote_with_media"
	case UnknownEmbed:
		return "unknown:" + v.Type
	default:
		return "unknown"
	}
}
