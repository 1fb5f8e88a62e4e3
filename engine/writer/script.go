package writer

import (
	"math"
	"unicode/utf8"
)

// Concept is a script pitch the user picks before the full script is written.
type Concept struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Synopsis    string `json:"synopsis"`
	HookPreview string `json:"hookPreview"`
}

// Chapter is one narrated block of a script.
type Chapter struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Script is a complete narration.
type Script struct {
	Title    string    `json:"title"`
	Intro    string    `json:"intro"`
	Chapters []Chapter `json:"chapters"`
	Moral    string    `json:"moral"`
	CTA      string    `json:"cta"`
}

// Chars is the narrated length of s in characters, title excluded.
func (s Script) Chars() int {
	n := utf8.RuneCountInString(s.Intro) + utf8.RuneCountInString(s.Moral) + utf8.RuneCountInString(s.CTA)
	for _, c := range s.Chapters {
		n += utf8.RuneCountInString(c.Content)
	}
	return n
}

// ClampScript trims every block longer than 115% of charsPerBlock. A block is
// cut after the last full stop before the limit when that stop lies past 60%
// of the 85% lower bound, otherwise it is cut at the limit. Shorter blocks
// are left alone.
func ClampScript(s Script, charsPerBlock int) Script {
	if charsPerBlock <= 0 {
		return s
	}
	lo := int(math.Floor(float64(charsPerBlock) * 0.85))
	hi := int(math.Floor(float64(charsPerBlock) * 1.15))

	out := s
	out.Intro = clampBlock(s.Intro, lo, hi)
	out.Moral = clampBlock(s.Moral, lo, hi)
	out.CTA = clampBlock(s.CTA, lo, hi)
	if s.Chapters != nil {
		out.Chapters = make([]Chapter, len(s.Chapters))
		for i, c := range s.Chapters {
			c.Content = clampBlock(c.Content, lo, hi)
			out.Chapters[i] = c
		}
	}
	return out
}

func clampBlock(text string, lo, hi int) string {
	r := []rune(text)
	if len(r) <= hi {
		return text
	}
	r = r[:hi]
	dot := -1
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == '.' {
			dot = i
			break
		}
	}
	if float64(dot) > float64(lo)*0.6 {
		return string(r[:dot+1])
	}
	return string(r)
}
