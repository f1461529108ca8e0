package scraper

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/rendis/sectorscan/internal/model"
)

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// NearbyPage is one decoded page of a Nearby Search response.
type NearbyPage struct {
	Status        string
	ErrorMessage  string
	NextPageToken string
	Places        []model.Place
}

// Usable reports whether the provider status carries results.
func (p NearbyPage) Usable() bool {
	return p.Status == statusOK || p.Status == statusZeroResults
}

// ParseNearbyResponse decodes a response body. Results are kept raw until
// they become Places so that every provider field survives.
func ParseNearbyResponse(body []byte) (NearbyPage, error) {
	var raw struct {
		Status        string            `json:"status"`
		ErrorMessage  string            `json:"error_message"`
		NextPageToken string            `json:"next_page_token"`
		Results       []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return NearbyPage{}, eris.Wrap(err, "scraper: decode nearby response")
	}

	page := NearbyPage{
		Status:        raw.Status,
		ErrorMessage:  raw.ErrorMessage,
		NextPageToken: raw.NextPageToken,
		Places:        make([]model.Place, 0, len(raw.Results)),
	}
	for i, r := range raw.Results {
		p, err := model.ParsePlace(r)
		if err != nil {
			return NearbyPage{}, eris.Wrapf(err, "scraper: result %d", i)
		}
		page.Places = append(page.Places, p)
	}
	return page, nil
}
