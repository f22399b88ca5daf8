package fetch

import "fmt"

// NavigationError reports that a page could not be loaded after every retry.
type NavigationError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: gave up after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

// Unwrap returns the last underlying navigation error.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ExtractionError reports that a page loaded but its content could not be
// turned into a record.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying extraction error.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}
