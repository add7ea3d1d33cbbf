// Package tts implements the text-to-speech pipeline: sentence
// segmentation, per-sentence websocket synthesis, and the on-disk
// audio cache.
package tts

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

const (
	// maxFragmentLen is where long fragments get a secondary split at
	// clause boundaries, keeping per-utterance synthesis latency low.
	maxFragmentLen = 100
	// minFragmentLen filters out noise fragments after trimming.
	minFragmentLen = 5
)

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

func isClauseBoundary(r rune) bool {
	switch r {
	case ',', ';', ':', '，', '；', '：', '、', '"', '“', '”', '»', '«':
		return true
	}
	return false
}

// Segment turns processed chapter content into utterances for
// synthesis: markup stripped, whitespace collapsed, split at sentence
// punctuation with long fragments re-split at clause boundaries, and
// noise fragments dropped.
func Segment(content string) []string {
	text := Flatten(content)

	var sentences []string
	var current []rune
	for _, r := range text {
		current = append(current, r)
		if isSentenceEnd(r) {
			sentences = append(sentences, string(current))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		sentences = append(sentences, string(current))
	}

	var out []string
	for _, sentence := range sentences {
		for _, fragment := range splitLong(sentence) {
			fragment = strings.TrimSpace(fragment)
			if len([]rune(fragment)) <= minFragmentLen {
				continue
			}
			out = append(out, fragment)
		}
	}
	return out
}

// splitLong breaks fragments longer than maxFragmentLen at clause
// boundaries. Fragments without any boundary are kept whole.
func splitLong(sentence string) []string {
	runes := []rune(sentence)
	if len(runes) <= maxFragmentLen {
		return []string{sentence}
	}

	var parts []string
	start := 0
	for i, r := range runes {
		if isClauseBoundary(r) && i+1-start >= minFragmentLen {
			parts = append(parts, string(runes[start:i+1]))
			start = i + 1
		}
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	if len(parts) == 0 {
		return []string{sentence}
	}
	return parts
}

// Flatten strips HTML tags and collapses whitespace runs, leaving
// plain prose suitable for segmentation.
func Flatten(content string) string {
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(content))

	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			break
		}
		if tokenType == html.TextToken {
			b.WriteString(tokenizer.Token().Data)
			b.WriteByte(' ')
		}
	}

	return collapseWhitespace(b.String())
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
