package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// CategoryKind names the filter bucket the free-text field currently feeds.
type CategoryKind int

const (
	CategoryName CategoryKind = iota
	CategoryLevel
	CategoryType
)

func (k CategoryKind) String() string {
	switch k {
	case CategoryName:
		return "nom"
	case CategoryLevel:
		return "niveau"
	case CategoryType:
		return "type"
	default:
		return "nom"
	}
}

// ParseCategoryKind maps a wire value back to a kind. Unknown values report
// ok=false so callers can reject them instead of silently defaulting.
func ParseCategoryKind(s string) (CategoryKind, bool) {
	switch s {
	case "nom", "name":
		return CategoryName, true
	case "niveau", "level":
		return CategoryLevel, true
	case "type":
		return CategoryType, true
	default:
		return CategoryName, false
	}
}

func (k CategoryKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *CategoryKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind, ok := ParseCategoryKind(s)
	if !ok {
		return fmt.Errorf("unknown category kind %q", s)
	}
	*k = kind
	return nil
}

// Category is the tagged pair of bucket and value. Switching the kind
// reassigns the whole pair, it never accumulates across buckets.
type Category struct {
	Kind  CategoryKind `json:"kind"`
	Value string       `json:"value"`
}

type SuggestKind int

const (
	KindLocation SuggestKind = iota
	KindEstablishment
	KindMetadata
)

func (k SuggestKind) String() string {
	switch k {
	case KindLocation:
		return "location"
	case KindEstablishment:
		return "establishment"
	case KindMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

func ParseSuggestKind(s string) (SuggestKind, bool) {
	switch s {
	case "location":
		return KindLocation, true
	case "establishment":
		return KindEstablishment, true
	case "metadata":
		return KindMetadata, true
	default:
		return KindLocation, false
	}
}

// Candidate is one autocomplete suggestion. ID is nil for kinds that carry
// labels only (establishment names, metadata pills); location candidates
// carry the backend localisation id.
type Candidate struct {
	ID    *int64 `json:"id"`
	Label string `json:"label"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SearchFilters is the mutable per-session filter aggregate.
//
// ResolvedLocationID is trustworthy only when it was set by an exact label
// match against the latest candidate list or an explicit selection; every
// other mutation of LocationText must null it.
type SearchFilters struct {
	Category           Category     `json:"category"`
	LocationText       string       `json:"location_text"`
	ResolvedLocationID *int64       `json:"resolved_location_id"`
	Coordinates        *Coordinates `json:"coordinates,omitempty"`
}

// QueryParams is the flat key-value form sent to the directory search
// endpoint. Absent keys are omitted entirely so backend defaulting applies.
type QueryParams map[string]string

type EstablishmentSummary struct {
	ID         int64    `json:"id"`
	Nom        string   `json:"nom"`
	Ville      string   `json:"ville"`
	Quartier   string   `json:"quartier"`
	Niveau     string   `json:"niveau"`
	Type       string   `json:"type,omitempty"`
	Formations []string `json:"formations,omitempty"`
	Distance   *float64 `json:"distance,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

type Review struct {
	User        string  `json:"user"`
	Note        float64 `json:"note"`
	Commentaire string  `json:"commentaire"`
	Date        string  `json:"date"`
}

type EstablishmentDetail struct {
	ID          int64    `json:"id"`
	Nom         string   `json:"nom"`
	Telephone   string   `json:"telephone"`
	Niveau      string   `json:"niveau"`
	Description string   `json:"description"`
	Site        string   `json:"site"`
	Ville       string   `json:"ville"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	PhotoURLs   []string `json:"photo_urls"`
	Formations  []string `json:"formations"`
	Avis        []Review `json:"avis"`
}

type Metadata struct {
	Villes     []string `json:"villes"`
	Quartiers  []string `json:"quartiers"`
	Niveaux    []string `json:"niveaux"`
	Formations []string `json:"formations"`
}

// ResultState is the lifecycle of one search submission. Empty and Failed are
// distinct on purpose: zero results is a normal outcome, not an error.
type ResultState int

const (
	StateIdle ResultState = iota
	StateLoading
	StateLoaded
	StateEmpty
	StateFailed
)

func (s ResultState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ResultPage is derived from the full result set and the current page number,
// never stored.
type ResultPage struct {
	Items      []EstablishmentSummary `json:"items"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
	Total      int                    `json:"total"`
}

// GeoFix is what the device reported: coordinates, an explicit permission
// denial, or nothing at all.
type GeoFix struct {
	Denied bool         `json:"denied"`
	Coords *Coordinates `json:"coords,omitempty"`
}

type AnalyticsEvent struct {
	EventType   string    `json:"event_type"`
	QueryHash   string    `json:"query_hash"`
	SessionID   string    `json:"session_id"`
	Status      string    `json:"status"`
	DurationMs  float64   `json:"duration_ms"`
	ResultCount int64     `json:"result_count"`
	Timestamp   time.Time `json:"timestamp"`
	TraceID     string    `json:"trace_id"`
	Source      string    `json:"source"`
}
