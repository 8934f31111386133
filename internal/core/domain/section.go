package domain

// Section is a bounded, titled slice of a long document.
type Section struct {
	// Index is the zero-based position of the section.
	Index int `json:"index"`

	// Title is the detected heading or a generated "Part N" label.
	Title string `json:"title"`

	// Content is the section text.
	Content string `json:"content"`

	// StartOffset and EndOffset are rune offsets into the original text.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`

	// WordCount is the number of whitespace-separated words.
	WordCount int `json:"word_count"`

	// Level is 0 for a whole document, 1 for detected headings and 2 for size-based parts.
	Level int `json:"level"`
}
