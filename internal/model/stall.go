// Package model defines the catalog and sync types shared across stallsync.
package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Country identifies the market a stall belongs to.
type Country string

const (
	CountrySG Country = "SG"
	CountryMY Country = "MY"
	CountryTH Country = "TH"
	CountryHK Country = "HK"
	CountryCN Country = "CN"
	CountryJP Country = "JP"
	CountryID Country = "ID"
)

var knownCountries = map[Country]bool{
	CountrySG: true, CountryMY: true, CountryTH: true, CountryHK: true,
	CountryCN: true, CountryJP: true, CountryID: true,
}

// ParseCountry validates an ISO2 country code against the supported set.
func ParseCountry(s string) (Country, error) {
	c := Country(strings.ToUpper(strings.TrimSpace(s)))
	if !knownCountries[c] {
		return "", eris.Errorf("model: unsupported country %q", s)
	}
	return c, nil
}

// StallStatus is the soft-delete marker on a stall.
type StallStatus string

const (
	StallActive   StallStatus = "active"
	StallInactive StallStatus = "inactive"
)

// StallRecord is a persisted catalog entry.
type StallRecord struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`

	Name          string  `json:"name"`
	Cuisine       string  `json:"cuisine"`
	CuisineLabel  string  `json:"cuisineLabel"`
	Country       Country `json:"country"`
	EpisodeNumber string  `json:"episodeNumber"`
	Address       string  `json:"address"`
	OpeningTimes  string  `json:"openingTimes"`
	DishName      string  `json:"dishName"`
	Price         string  `json:"price"`

	RatingOriginal  *int `json:"ratingOriginal"`
	RatingModerated *int `json:"ratingModerated"`

	YoutubeTitle    string `json:"youtubeTitle"`
	YoutubeVideoURL string `json:"youtubeVideoUrl"`
	YoutubeVideoID  string `json:"youtubeVideoId"`

	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	TimeCategories []string `json:"timeCategories"`
	Awards         []string `json:"awards"`

	AddedAt       time.Time  `json:"addedAt"`
	LastScrapedAt *time.Time `json:"lastScrapedAt,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	Status StallStatus `json:"status"`
}

// Geocoded reports whether the stall has real coordinates. 0,0 means "not yet".
func (s StallRecord) Geocoded() bool {
	return s.Lat != 0 || s.Lng != 0
}

// HasVideo reports whether the stall carries a resolved video id.
func (s StallRecord) HasVideo() bool {
	return s.YoutubeVideoID != ""
}

// OpKind classifies a write against the stalls table.
type OpKind string

const (
	OpInsert     OpKind = "insert"
	OpUpdate     OpKind = "update"
	OpDeactivate OpKind = "deactivate"
)

// StallOp is a single mutation submitted to the persistence gateway.
type StallOp struct {
	Kind  OpKind      `json:"kind"`
	Stall StallRecord `json:"stall"`
	// Fields lists the columns that differ for an update.
	Fields []string `json:"fields,omitempty"`
}
