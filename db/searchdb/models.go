package searchdb

// Document is one search index record as stored in bleve.
type Document struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Ordinal  int    `json:"ordinal"`
	Location string `json:"location"`
	Page     string `json:"page"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

type Result struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Location string  `json:"location"`
	Page     string  `json:"page"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet"`
}

type Response struct {
	Results    []Result `json:"results"`
	Total      uint64   `json:"total"`
	MaxScore   float64  `json:"max_score"`
	SearchTime string   `json:"search_time"`
}
