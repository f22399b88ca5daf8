// Package extract turns rendered logbook pages into content records. All
// functions are pure: they read a goquery document and never touch the
// network. Missing optional fields degrade to empty values.
package extract

// Selectors lists the CSS selectors of the supported page layout. Each field
// may hold a comma separated group; for single-valued fields the first
// matching element in document order is used.
type Selectors struct {
	ReviewTitle    string `mapstructure:"review_title"`
	ReviewBody     string `mapstructure:"review_body"`
	ReviewPassport string `mapstructure:"review_passport"`

	PostCard      string `mapstructure:"post_card"`
	CardTitle     string `mapstructure:"card_title"`
	CardCategory  string `mapstructure:"card_category"`
	CardImage     string `mapstructure:"card_image"`
	CardLikes     string `mapstructure:"card_likes"`
	CardComments  string `mapstructure:"card_comments"`
	CardMetric    string `mapstructure:"card_metric"`
	PagerMarker   string `mapstructure:"pager_marker"`
	PageParameter string `mapstructure:"page_parameter"`

	PostTitle      string `mapstructure:"post_title"`
	PostDate       string `mapstructure:"post_date"`
	AuthorLink     string `mapstructure:"author_link"`
	AuthorLocation string `mapstructure:"author_location"`
	AuthorCars     string `mapstructure:"author_cars"`
	PostBody       string `mapstructure:"post_body"`
	PostMetric     string `mapstructure:"post_metric"`
	PostFigure     string `mapstructure:"post_figure"`
}

// DefaultSelectors returns the selectors for the site's current layout.
func DefaultSelectors() Selectors {
	return Selectors{
		ReviewTitle:    "h1",
		ReviewBody:     `[itemprop="reviewBody"], .c-car-desc__text, .js-car-desc`,
		ReviewPassport: ".c-car-passport, .c-car-info__passport",

		PostCard:      ".c-post-preview, .c-block--post",
		CardTitle:     ".c-post-preview__title a, a.c-link--text",
		CardCategory:  ".c-post-preview__category, .c-post-preview__tag",
		CardImage:     ".c-post-preview__image img, img",
		CardLikes:     ".c-like__counter, .c-post-preview__likes",
		CardComments:  ".c-post-preview__comments, .c-comments-count",
		CardMetric:    "[data-tt]",
		PagerMarker:   ".c-pager a, .c-pager span, .c-pagination a",
		PageParameter: "page",

		PostTitle:      "h1",
		PostDate:       `[itemprop="datePublished"], .c-post-meta__date`,
		AuthorLink:     `.c-user-card__name a, [itemprop="author"] a, a.c-username`,
		AuthorLocation: ".c-user-card__location, .c-user-card__city",
		AuthorCars:     ".c-user-card__cars a, .c-user-card__car a",
		PostBody:       `[itemprop="articleBody"], .c-post__body, .js-post-body`,
		PostMetric:     ".c-post-meta [data-tt], .c-post__meta [data-tt]",
		PostFigure:     "figure",
	}
}

// WithDefaults fills empty fields from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&s.ReviewTitle, d.ReviewTitle)
	fill(&s.ReviewBody, d.ReviewBody)
	fill(&s.ReviewPassport, d.ReviewPassport)
	fill(&s.PostCard, d.PostCard)
	fill(&s.CardTitle, d.CardTitle)
	fill(&s.CardCategory, d.CardCategory)
	fill(&s.CardImage, d.CardImage)
	fill(&s.CardLikes, d.CardLikes)
	fill(&s.CardComments, d.CardComments)
	fill(&s.CardMetric, d.CardMetric)
	fill(&s.PagerMarker, d.PagerMarker)
	fill(&s.PageParameter, d.PageParameter)
	fill(&s.PostTitle, d.PostTitle)
	fill(&s.PostDate, d.PostDate)
	fill(&s.AuthorLink, d.AuthorLink)
	fill(&s.AuthorLocation, d.AuthorLocation)
	fill(&s.AuthorCars, d.AuthorCars)
	fill(&s.PostBody, d.PostBody)
	fill(&s.PostMetric, d.PostMetric)
	fill(&s.PostFigure, d.PostFigure)
	return s
}
