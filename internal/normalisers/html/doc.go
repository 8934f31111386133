// Package html provides a Normaliser implementation for HTML documents.
// The main content is isolated with go-readability and flattened to text
// with goquery, keeping block elements as paragraphs.
package html
