// Package query assembles the flat parameter map sent to the directory
// search endpoint from the heterogeneous filter state a session holds.
package query

import (
	"errors"
	"strconv"
	"strings"

	"github.com/edunet/search-gateway/internal/models"
)

// ErrEmptyQuery rejects a submission with no discriminating field at all.
// Coordinates alone do not count: the backend uses them for distance
// sorting, never for filtering.
var ErrEmptyQuery = errors.New("at least one search field is required")

type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build produces the directory query parameters. Absent keys are omitted
// entirely so the backend's own defaulting applies.
//
// Location precedence, first match wins:
//  1. a resolved localisation id, emitted alone — raw text is dropped since
//     the id is proven to correspond to it;
//  2. free location text, split on the first comma into ville and quartier;
//  3. no location constraint.
func (b *Builder) Build(filters *models.SearchFilters) (models.QueryParams, error) {
	freeText := strings.TrimSpace(filters.Category.Value)
	locationText := strings.TrimSpace(filters.LocationText)

	if freeText == "" && locationText == "" {
		return nil, ErrEmptyQuery
	}

	params := models.QueryParams{}

	if freeText != "" {
		params[filters.Category.Kind.String()] = freeText
	}

	switch {
	case filters.ResolvedLocationID != nil:
		params["localisation"] = strconv.FormatInt(*filters.ResolvedLocationID, 10)
	case locationText != "":
		ville, quartier := splitLocation(locationText)
		if ville != "" {
			params["ville"] = ville
		}
		if quartier != "" {
			params["quartier"] = quartier
		}
	}

	if filters.Coordinates != nil {
		params["lat"] = strconv.FormatFloat(filters.Coordinates.Lat, 'f', -1, 64)
		params["lon"] = strconv.FormatFloat(filters.Coordinates.Lon, 'f', -1, 64)
	}

	return params, nil
}

// splitLocation cuts on the first comma only: "Tunis, Lac 2, Nord" keeps
// "Lac 2, Nord" as the quartier part.
func splitLocation(text string) (ville, quartier string) {
	before, after, found := strings.Cut(text, ",")
	ville = strings.TrimSpace(before)
	if found {
		quartier = strings.TrimSpace(after)
	}
	return ville, quartier
}
