package importer

import (
	"fmt"
	"regexp"
	"strings"
)

type Strategy string

const (
	StrategyHeading    Strategy = "heading"
	StrategySceneBreak Strategy = "sceneBreak"
	StrategySingle     Strategy = "single"
)

const (
	untitledTitle = "Untitled"
	singleTitle   = "Imported Chapter"
)

// Segment is a candidate chapter found in an imported document.
type Segment struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

var (
	headingLine    = regexp.MustCompile(`^#{1,2}[ \t]+(.+)$`)
	sceneBreakLine = regexp.MustCompile(`^(?:\*{3,}|-{3,}|#{3,})$`)
)

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "heading", "headings":
		return StrategyHeading, nil
	case "scenebreak", "scene-break", "break":
		return StrategySceneBreak, nil
	case "single", "none":
		return StrategySingle, nil
	default:
		return "", fmt.Errorf("unknown split strategy %q (want heading|sceneBreak|single)", s)
	}
}

// Split cuts text into candidate chapters. The result is never empty: when the strategy finds
// no non-empty segment the whole input comes back as one untitled chapter.
func Split(text string, strategy Strategy) []Segment {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []Segment
	switch strategy {
	case StrategyHeading:
		out = splitHeadings(text)
	case StrategySceneBreak:
		out = splitSceneBreaks(text)
	default:
		return []Segment{{Title: singleTitle, Content: text}}
	}
	if len(out) == 0 {
		return []Segment{{Title: untitledTitle, Content: text}}
	}
	return out
}

func splitHeadings(text string) []Segment {
	var out []Segment
	title := untitledTitle
	var body []string
	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content != "" {
			out = append(out, Segment{Title: title, Content: content})
		}
		body = body[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if m := headingLine.FindStringSubmatch(line); m != nil {
			flush()
			title = strings.TrimSpace(m[1])
			continue
		}
		body = append(body, line)
	}
	flush()
	return out
}

func splitSceneBreaks(text string) []Segment {
	var out []Segment
	var body []string
	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content != "" {
			out = append(out, Segment{Title: fmt.Sprintf("Chapter %d", len(out)+1), Content: content})
		}
		body = body[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if sceneBreakLine.MatchString(strings.TrimRight(line, " \t")) {
			flush()
			continue
		}
		body = append(body, line)
	}
	flush()
	return out
}
