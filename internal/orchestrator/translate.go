package orchestrator

import "strings"

// Category is the user-facing classification of a failure. The messaging
// front-end owns final wording; Message is the category-level fallback text.
type Category string

const (
	CategorySizeExceeded Category = "size_exceeded"
	CategoryTimeout      Category = "timeout"
	CategoryUnavailable  Category = "unavailable"
	CategoryNetwork      Category = "network"
	CategoryRestricted   Category = "restricted"
	CategoryDelivery     Category = "delivery"
	CategoryGeneric      Category = "generic"
)

func (c Category) Message() string {
	switch c {
	case CategorySizeExceeded:
		return "The video is too large to download. Try a different video."
	case CategoryTimeout:
		return "The download took too long and was stopped. Try again later."
	case CategoryUnavailable:
		return "The video is unavailable. It may have been removed by its author."
	case CategoryNetwork:
		return "A network error occurred while downloading. Try again in a few minutes."
	case CategoryRestricted:
		return "The video cannot be downloaded. It may be private or restricted in your region."
	case CategoryDelivery:
		return "The video was downloaded but could not be delivered. Try again later."
	default:
		return "The video could not be downloaded. Try again later or send a different link."
	}
}

// matcher maps technical error text substrings to a category.
type matcher struct {
	category Category
	needles  []string
}

// matchers are checked in order; the first category with any matching
// substring wins. Order encodes precedence: a "download timed out" message
// must read as a timeout even though it also mentions "download".
var matchers = []matcher{
	{CategorySizeExceeded, []string{"exceeds size limit", "exceeds limit", "too large"}},
	{CategoryTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{CategoryUnavailable, []string{"not available", "unavailable", "removed", "deleted", "not found"}},
	{CategoryNetwork, []string{"network", "connection", "request failed", "failed to fetch"}},
	{CategoryRestricted, []string{"geo", "region", "private", "restricted", "forbidden"}},
	{CategoryDelivery, []string{"failed to send", "deliver"}},
}

// Translate maps technical error text to a user-facing category.
func Translate(technical string) Category {
	lower := strings.ToLower(technical)
	for _, m := range matchers {
		for _, needle := range m.needles {
			if strings.Contains(lower, needle) {
				return m.category
			}
		}
	}
	return CategoryGeneric
}
