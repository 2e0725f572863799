package sections

import (
	"fmt"
	"strings"
)

// Protocol selects how section boundaries are recognised.
type Protocol int

const (
	// ProtocolV1 is the legacy protocol: any line starting with "---" that
	// is not a known header closes the current section, and any line
	// starting with "Output" opens the output section.
	ProtocolV1 Protocol = iota + 1
	// ProtocolV2 requires explicit markers. Sections open on
	// "--- <Title> ---" and close on "--- End <Title> ---" or the next
	// header. Other lines, including ones starting with "---", are content.
	ProtocolV2
)

func (p Protocol) String() string {
	switch p {
	case ProtocolV1:
		return "v1"
	case ProtocolV2:
		return "v2"
	}
	return fmt.Sprintf("Protocol(%d)", int(p))
}

// ParseProtocol resolves "v1" or "v2". The empty string means v1.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "v1", "1":
		return ProtocolV1, nil
	case "v2", "2":
		return ProtocolV2, nil
	}
	return 0, fmt.Errorf("unknown protocol %q (want v1 or v2)", s)
}

// Document is the full result of scanning compiler output.
type Document struct {
	Sections Map
	// Preamble holds lines seen before the first header, such as
	// "Parsing failed.". They are never part of any section.
	Preamble []string
}

// Parser demultiplexes compiler output. The zero value uses ProtocolV1.
type Parser struct {
	Protocol Protocol
}

// Parse returns only the section map of Scan.
func (p Parser) Parse(raw string) Map {
	return p.Scan(raw).Sections
}

// Scan walks raw line by line and partitions it into sections.
func (p Parser) Scan(raw string) Document {
	doc := Document{Sections: make(Map)}

	var (
		current Key
		open    bool
		seen    bool // any header seen yet
		builder = make(map[Key]*strings.Builder)
	)

	openSection := func(k Key) {
		current, open, seen = k, true, true
		if _, ok := builder[k]; !ok {
			builder[k] = &strings.Builder{}
		}
	}

	forEachLine(raw, func(line string) {
		switch ev, k := p.classify(line, current, open); ev {
		case eventOpen:
			openSection(k)
		case eventClose:
			open = false
		default:
			if open {
				b := builder[current]
				b.WriteString(line)
				b.WriteByte('\n')
			} else if !seen {
				doc.Preamble = append(doc.Preamble, line)
			}
		}
	})

	for k, b := range builder {
		doc.Sections[k] = b.String()
	}
	return doc
}

type event int

const (
	eventContent event = iota
	eventOpen
	eventClose
)

func (p Parser) classify(line string, current Key, open bool) (event, Key) {
	switch line {
	case HeaderAST:
		return eventOpen, AST
	case HeaderIntermediate:
		return eventOpen, Intermediate
	case HeaderSymbol:
		return eventOpen, Symbol
	}

	if p.Protocol == ProtocolV2 {
		if line == headerFor(Output) {
			return eventOpen, Output
		}
		if open && line == endMarkerFor(current) {
			return eventClose, ""
		}
		return eventContent, ""
	}

	if strings.HasPrefix(line, PrefixOutput) {
		return eventOpen, Output
	}
	if strings.HasPrefix(line, PrefixDelimiter) {
		return eventClose, ""
	}
	return eventContent, ""
}

func headerFor(k Key) string {
	return PrefixDelimiter + " " + k.Title() + " " + PrefixDelimiter
}

func endMarkerFor(k Key) string {
	return PrefixDelimiter + " End " + k.Title() + " " + PrefixDelimiter
}

// forEachLine calls fn for every line of s. Lines end at "\n"; the last
// line need not. A trailing "\r" is dropped so CRLF output parses the same.
func forEachLine(s string, fn func(line string)) {
	for len(s) > 0 {
		line, rest, found := strings.Cut(s, "\n")
		fn(strings.TrimSuffix(line, "\r"))
		if !found {
			return
		}
		s = rest
	}
}
