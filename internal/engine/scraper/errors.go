package scraper

import "fmt"

// ProviderError reports a failed call to the search provider: a transport
// failure, a non-2xx response or a provider status other than OK and
// ZERO_RESULTS.
type ProviderError struct {
	Page       int
	StatusCode int
	Status     string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("provider: page %d: %v", e.Page, e.Err)
	case e.Status != "":
		if e.Message != "" {
			return fmt.Sprintf("provider: page %d: status %s: %s", e.Page, e.Status, e.Message)
		}
		return fmt.Sprintf("provider: page %d: status %s", e.Page, e.Status)
	default:
		return fmt.Sprintf("provider: page %d: unexpected http status %d", e.Page, e.StatusCode)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the provider refused the call for quota reasons.
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == 429 || e.Status == "OVER_QUERY_LIMIT"
}
