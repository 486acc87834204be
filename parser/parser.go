// Copyright 2025 Normenwerk
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package parser converts statute XML documents into text units.
//
// The input format is the norm-document XML published for German federal
// law: a dokumente root holding norm elements, each with an enbez heading
// in its metadata and paragraph (P) elements in its text body. Paragraphs
// that open with a marker like "(1)" are grouped into sub-sections; all
// unmarked paragraphs of a section form its whole-section unit.
package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/normenwerk/normstore/core"
)

// ParseError indicates a document could not be converted into any text
// units, either because the XML is malformed or because it holds no
// usable section content.
type ParseError struct {
	Code   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Code, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Warning records a recoverable anomaly found while parsing. Warnings do
// not stop parsing; callers surface them in ingestion reports.
type Warning struct {
	Code       string
	Section    string
	SubSection string
	Reason     string
}

// Result holds the units extracted from one document, in document order,
// along with any warnings collected on the way.
type Result struct {
	Units    []*core.TextUnit
	Warnings []Warning
}

type xmlDocument struct {
	XMLName xml.Name  `xml:"dokumente"`
	Norms   []xmlNorm `xml:"norm"`
}

type xmlNorm struct {
	Metadata xmlMetadata `xml:"metadaten"`
	Body     xmlBody     `xml:"textdaten"`
}

type xmlMetadata struct {
	Heading string `xml:"enbez"`
}

type xmlBody struct {
	Text xmlText `xml:"text"`
}

type xmlText struct {
	Content xmlContent `xml:"Content"`
}

type xmlContent struct {
	Paragraphs []flatText `xml:"P"`
}

// flatText unmarshals an element into the concatenation of all character
// data beneath it, dropping nested markup such as inline tables and
// typography elements.
type flatText struct {
	Value string
}

func (f *flatText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
			// keep a separator between adjacent text nodes
			sb.WriteByte(' ')
		}
	}
	f.Value = sb.String()
	return nil
}

// Parse reads a statute XML document and returns the text units it
// contains. code must already be normalized; every returned unit carries
// it. A document yielding zero units is an error, not an empty result.
func Parse(r io.Reader, code string) (*Result, error) {
	if err := core.ValidateCode(code); err != nil {
		return nil, &ParseError{Code: code, Reason: "invalid code", Err: err}
	}

	var doc xmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ParseError{Code: code, Reason: "malformed document", Err: err}
	}

	result := &Result{}
	seen := make(map[core.UnitKey]*core.TextUnit)
	ordinals := make(map[core.UnitKey]int)
	position := 0

	for _, norm := range doc.Norms {
		section := collapseWhitespace(norm.Metadata.Heading)
		if section == "" {
			continue
		}

		for _, group := range groupParagraphs(norm.Body.Text.Content.Paragraphs) {
			unit := &core.TextUnit{
				Code:       code,
				Section:    section,
				SubSection: group.subSection,
				Text:       group.text,
			}
			unit.ContentHash = core.HashContent(unit.Text)

			key := unit.Key()
			if prev, ok := seen[key]; ok {
				if prev.Text == unit.Text {
					result.Warnings = append(result.Warnings, Warning{
						Code:       code,
						Section:    section,
						SubSection: group.subSection,
						Reason:     "duplicate unit with identical text dropped",
					})
					continue
				}
				ordinals[key]++
				unit.SubSection = fmt.Sprintf("%s #%d", group.subSection, ordinals[key]+1)
				result.Warnings = append(result.Warnings, Warning{
					Code:       code,
					Section:    section,
					SubSection: unit.SubSection,
					Reason:     "duplicate heading with differing text, ordinal appended",
				})
			} else {
				seen[key] = unit
			}

			unit.Position = position
			position++
			result.Units = append(result.Units, unit)
		}
	}

	if len(result.Units) == 0 {
		return nil, &ParseError{Code: code, Reason: "document contains no text units"}
	}

	return result, nil
}

type paragraphGroup struct {
	subSection string
	text       string
}

// groupParagraphs buckets paragraphs by their leading sub-section marker,
// preserving first-occurrence order. Paragraphs in the same bucket are
// joined with a blank line.
func groupParagraphs(paragraphs []flatText) []paragraphGroup {
	var order []string
	buckets := make(map[string][]string)

	for _, p := range paragraphs {
		text := collapseWhitespace(p.Value)
		if text == "" {
			continue
		}
		sub := subSectionMarker(text)
		if _, ok := buckets[sub]; !ok {
			order = append(order, sub)
		}
		buckets[sub] = append(buckets[sub], text)
	}

	groups := make([]paragraphGroup, 0, len(order))
	for _, sub := range order {
		groups = append(groups, paragraphGroup{
			subSection: sub,
			text:       strings.Join(buckets[sub], "\n\n"),
		})
	}
	return groups
}

// subSectionMarker extracts the numbering from a leading "(n)" marker.
// Paragraphs without a marker belong to the whole-section unit, reported
// as the empty sub-section.
func subSectionMarker(text string) string {
	if !strings.HasPrefix(text, "(") {
		return ""
	}
	rest := text[1:]
	if i := strings.Index(rest, ")"); i >= 0 {
		return rest[:i]
	}
	return rest
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
