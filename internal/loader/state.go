package loader

import (
	"fmt"
	"slices"
)

const (
	DefaultFontSize   = 100 // percent
	DefaultFontFamily = "serif"

	MinFontSize = 50
	MaxFontSize = 200
)

// FontFamilies are the generic families a reader can pick from.
var FontFamilies = []string{"serif", "sans-serif", "monospace"}

// ReaderState is the reading position and typography chosen by a presentation
// layer. The load pipeline never reads or writes it.
type ReaderState struct {
	ChapterIndex int
	FontSize     int
	FontFamily   string
}

// NewReaderState returns a state positioned at the first chapter.
func NewReaderState() ReaderState {
	return ReaderState{
		FontSize:   DefaultFontSize,
		FontFamily: DefaultFontFamily,
	}
}

// Clamp keeps ChapterIndex within a document of n chapters, FontSize within
// MinFontSize..MaxFontSize and FontFamily among FontFamilies. An unset font
// size or an unknown family falls back to its default.
func (s ReaderState) Clamp(n int) ReaderState {
	switch {
	case n <= 0 || s.ChapterIndex < 0:
		s.ChapterIndex = 0
	case s.ChapterIndex >= n:
		s.ChapterIndex = n - 1
	}

	switch {
	case s.FontSize == 0:
		s.FontSize = DefaultFontSize
	case s.FontSize < MinFontSize:
		s.FontSize = MinFontSize
	case s.FontSize > MaxFontSize:
		s.FontSize = MaxFontSize
	}

	if !slices.Contains(FontFamilies, s.FontFamily) {
		s.FontFamily = DefaultFontFamily
	}
	return s
}

// Next moves to the following chapter, staying on the last one.
func (s ReaderState) Next(n int) ReaderState {
	s.ChapterIndex++
	return s.Clamp(n)
}

// Prev moves to the preceding chapter, staying on the first one.
func (s ReaderState) Prev(n int) ReaderState {
	s.ChapterIndex--
	return s.Clamp(n)
}

// Stylesheet returns the body rule applying the typography of s.
func (s ReaderState) Stylesheet() string {
	return fmt.Sprintf("body { font-family: %s, serif; font-size: %d%%; line-height: 1.6; }", s.FontFamily, s.FontSize)
}
