package markdown

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/logbook-exporter/internal/content"
)

// Section headings and the fallback used when the review body is missing.
const (
	ReviewHeading   = "## Отзыв владельца"
	PassportHeading = "## Паспортные данные"
	MetaHeading     = "## Информация"
	ContentHeading  = "## Содержание"
	ReviewFallback  = "Отзыв владельца отсутствует."
)

// RenderReview builds the review document.
func RenderReview(review content.ReviewRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.TrimSpace(review.Title))

	b.WriteString(ReviewHeading + "\n\n")
	body := ConvertHTML(review.ReviewBodyHTML, review.BaseURL)
	if body == "" {
		body = ReviewFallback
	}
	b.WriteString(body + "\n")

	if passport := ConvertHTML(review.PassportHTML, review.BaseURL); passport != "" {
		b.WriteString("\n" + PassportHeading + "\n\n")
		b.WriteString(passport + "\n")
	}
	return b.String()
}

// RenderPost builds the document for a single post.
func RenderPost(post content.PostRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.TrimSpace(post.Title))

	if date := strings.TrimSpace(post.PublicationDate); date != "" {
		fmt.Fprintf(&b, "**Дата публикации:** %s\n\n", date)
	}
	if line := authorLine(post.Author, post.BaseURL); line != "" {
		fmt.Fprintf(&b, "**Автор:** %s\n\n", line)
	}
	if loc := strings.TrimSpace(post.Author.Location); loc != "" {
		fmt.Fprintf(&b, "**Местоположение:** %s\n\n", loc)
	}
	if cars := carsLine(post.Author.Cars, post.BaseURL); cars != "" {
		fmt.Fprintf(&b, "**Автомобили автора:** %s\n\n", cars)
	}

	b.WriteString("---\n\n")

	if post.Metadata.HasAny() {
		b.WriteString(MetaHeading + "\n\n")
		if post.Metadata.Cost != "" {
			fmt.Fprintf(&b, "- **Стоимость:** %s\n", post.Metadata.Cost)
		}
		if post.Metadata.Mileage != "" {
			fmt.Fprintf(&b, "- **Пробег:** %s\n", post.Metadata.Mileage)
		}
		b.WriteString("\n")
	}

	b.WriteString(ContentHeading + "\n\n")
	if body := ConvertHTML(post.ContentHTML, post.BaseURL); body != "" {
		b.WriteString(body + "\n")
	}
	return b.String()
}

func authorLine(author content.Author, baseURL string) string {
	name := strings.TrimSpace(author.Name)
	if name == "" {
		return ""
	}
	if author.URL == "" {
		return name
	}
	return fmt.Sprintf("[%s](%s)", name, ResolveURL(baseURL, author.URL))
}

func carsLine(cars []content.CarLink, baseURL string) string {
	links := make([]string, 0, len(cars))
	for _, car := range cars {
		name := strings.TrimSpace(car.Name)
		if name == "" {
			continue
		}
		if car.URL == "" {
			links = append(links, name)
			continue
		}
		links = append(links, fmt.Sprintf("[%s](%s)", name, ResolveURL(baseURL, car.URL)))
	}
	return strings.Join(links, ", ")
}
