// Package content defines the records extracted from the logbook site.
package content

// ReviewRecord is the owner review shown on the car's root page.
type ReviewRecord struct {
	Title          string
	ReviewBodyHTML string
	// PassportHTML is the optional technical passport block.
	PassportHTML string
	BaseURL      string
}

// PostSummary is one entry of the paginated post listing. Link is the identity
// used for deduplication against the progress ledger.
type PostSummary struct {
	Title    string
	Link     string
	Category string
	ImageURL string
	Likes    string
	Comments string
	Date     string
	Price    string
	Mileage  string
}

// ListingPage is the extraction result for one listing page.
type ListingPage struct {
	Posts []PostSummary
	// PageCount is derived from pagination markers and is only meaningful on
	// the first page.
	PageCount int
}

// CarLink points at one of the author's vehicles.
type CarLink struct {
	Name string
	URL  string
}

// Author describes who wrote a post.
type Author struct {
	Name     string
	URL      string
	Location string
	Cars     []CarLink
}

// Metadata carries the optional cost and mileage attached to a post.
type Metadata struct {
	Cost    string
	Mileage string
}

// HasAny reports whether at least one metadata field is present.
func (m Metadata) HasAny() bool {
	return m.Cost != "" || m.Mileage != ""
}

// Image is a picture embedded in a post body.
type Image struct {
	Src     string
	Caption string
}

// PostRecord is the full content of a single post detail page.
type PostRecord struct {
	Title           string
	PublicationDate string
	Author          Author
	ContentHTML     string
	Metadata        Metadata
	Images          []Image
	BaseURL         string
}
