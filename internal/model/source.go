package model

// SourceFoodPlace is one place row parsed from a sheet snapshot. It lives for
// the duration of a single sync run.
type SourceFoodPlace struct {
	SourceRow        int      `json:"sourceRow"`
	EpisodeNumber    string   `json:"episodeNumber"`
	Place            string   `json:"place"`
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	DishName         string   `json:"dishName"`
	Price            string   `json:"price"`
	OpeningTimes     string   `json:"openingTimes,omitempty"`
	RatingOriginal   *int     `json:"ratingOriginal"`
	RatingModerated  *int     `json:"ratingModerated"`
	YoutubeVideoLink string   `json:"youtubeVideoLink"`
	Awards           []string `json:"awards"`
}
