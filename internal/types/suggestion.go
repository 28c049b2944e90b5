package types

// Suggestion is a place returned by a lookup provider.
type Suggestion struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Address     string `json:"address"`
	Coordinates Point  `json:"coordinates"`
}
