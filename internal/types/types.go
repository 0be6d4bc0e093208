package types

import (
	"encoding/json"
	"time"
)

// CitationsUnknown marks an article whose citation count the index does not know.
const CitationsUnknown = -1

// Fragments is a list of highlighted HTML fragments. The search API sends the
// title highlight as a single string and abstract highlights as a list; both
// decode into Fragments.
type Fragments []string

func (f *Fragments) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*f = nil
		} else {
			*f = Fragments{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*f = many
	return nil
}

// Highlights holds the highlighted fragments returned with a search hit.
type Highlights struct {
	Title    Fragments `json:"title,omitempty"`
	Abstract Fragments `json:"abstract,omitempty"`
}

// Article is a research article as returned by the search and article APIs.
type Article struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Abstract        string     `json:"abstract,omitempty"`
	Content         string     `json:"content,omitempty"`
	PublicationDate string     `json:"custom_publication_date,omitempty"`
	Container       string     `json:"container,omitempty"`
	DOI             string     `json:"DOI,omitempty"`
	URLs            []string   `json:"URLs,omitempty"`
	Authors         []string   `json:"authors,omitempty"`
	Bibtex          string     `json:"bibtex,omitempty"`
	APA             string     `json:"apa,omitempty"`
	MLA             string     `json:"mla,omitempty"`
	ISO690          string     `json:"iso690,omitempty"`
	Citations       int        `json:"citation"`
	Highlights      Highlights `json:"highlights,omitempty"`
	Score           float64    `json:"score,omitempty"`
}

// UnmarshalJSON accepts both the search hit shape (id, container) and the raw
// index record shape (_id, container_title, _score).
func (a *Article) UnmarshalJSON(data []byte) error {
	type plain Article
	var wire struct {
		plain
		RawID          string   `json:"_id"`
		ContainerTitle string   `json:"container_title"`
		RawScore       *float64 `json:"_score"`
		Citation       *int     `json:"citation"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = Article(wire.plain)
	if a.ID == "" {
		a.ID = wire.RawID
	}
	if a.Container == "" {
		a.Container = wire.ContainerTitle
	}
	if a.Score == 0 && wire.RawScore != nil {
		a.Score = *wire.RawScore
	}
	if wire.Citation == nil {
		a.Citations = CitationsUnknown
	} else {
		a.Citations = *wire.Citation
	}
	return nil
}

// URL returns the first known URL of the article, or "".
func (a Article) URL() string {
	if len(a.URLs) == 0 {
		return ""
	}
	return a.URLs[0]
}

// HistoryEntry is one question of the question log.
type HistoryEntry struct {
	ID           int       `json:"id"`
	Question     string    `json:"question"`
	AnswersCount int       `json:"answers_count"`
	Date         time.Time `json:"date"`
}

// SearchResult is the response of the search API.
type SearchResult struct {
	Hits []Article `json:"hits"`
}

// CitationFormat selects one of the stored citation strings.
type CitationFormat int

const (
	CiteBibtex CitationFormat = iota
	CiteAPA
	CiteMLA
	CiteISO690
)

var citationNames = []string{"Bibtex", "APA", "MLA", "ISO 690"}

func (f CitationFormat) String() string {
	if int(f) < 0 || int(f) >= len(citationNames) {
		return "unknown"
	}
	return citationNames[f]
}

// CitationFormats lists the formats in display order.
func CitationFormats() []CitationFormat {
	return []CitationFormat{CiteBibtex, CiteAPA, CiteMLA, CiteISO690}
}

// Citation returns the stored citation string for the format.
func (a Article) Citation(f CitationFormat) string {
	switch f {
	case CiteBibtex:
		return a.Bibtex
	case CiteAPA:
		return a.APA
	case CiteMLA:
		return a.MLA
	case CiteISO690:
		return a.ISO690
	}
	return ""
}
