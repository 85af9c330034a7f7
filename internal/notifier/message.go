package notifier

import (
	"fmt"
	"strings"
	"time"

	"sigfuse/internal/types"
)

const maxStructuredMessageLen = 3800

// MessageSection is one titled block inside a notification.
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage describes a uniformly formatted push notification.
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown renders the message as Markdown, trimming to the transport's
// length ceiling.
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder
	header := strings.TrimSpace(strings.TrimSpace(m.Icon + " " + m.Title))
	if header != "" {
		b.WriteString(header + "\n\n")
	}
	if block := renderSections(m.Sections); block != "" {
		b.WriteString(block)
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(sanitize(footer))
		b.WriteString("\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("time: " + m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxStructuredMessageLen {
		body = body[:maxStructuredMessageLen] + "..."
	}
	return body
}

func renderSections(secs []MessageSection) string {
	hasContent := false
	for _, sec := range secs {
		if len(sanitizeLines(sec.Lines)) > 0 {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return ""
	}
	var b strings.Builder
	b.WriteString("```\n")
	for idx, sec := range secs {
		lines := sanitizeLines(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		title := strings.TrimSpace(sec.Title)
		if title != "" {
			b.WriteString(sanitize(title))
			b.WriteString("\n")
		}
		for _, line := range lines {
			b.WriteString("- ")
			b.WriteString(sanitize(line))
			b.WriteString("\n")
		}
		if idx != len(secs)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("```\n\n")
	return b.String()
}

func sanitizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := strings.TrimSpace(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "```", "'''")
	return s
}

func directionIcon(d types.Direction) string {
	switch d {
	case types.DirectionLong:
		return "🚀"
	case types.DirectionShort:
		return "🔻"
	default:
		return "➖"
	}
}

// FormatSignal renders a scored signal into the shared push format.
func FormatSignal(sig types.Signal) StructuredMessage {
	summary := []string{
		fmt.Sprintf("score %.2f · tier %s · confidence %s", sig.Score, sig.Tier, sig.Confidence),
	}
	if sig.EntryPrice > 0 {
		summary = append(summary, fmt.Sprintf("reference price %.4f", sig.EntryPrice))
	}

	phaseLines := make([]string, 0, len(sig.PhaseScores))
	for _, ps := range sig.PhaseScores {
		if !ps.Populated() {
			phaseLines = append(phaseLines, fmt.Sprintf("%s: no data", ps.Phase))
			continue
		}
		line := fmt.Sprintf("%s: %.2f (%d/%d sources)",
			ps.Phase, ps.Value, len(ps.InputsUsed), len(ps.InputsUsed)+len(ps.InputsMissing))
		if ps.LowReliability {
			line += " ⚠"
		}
		phaseLines = append(phaseLines, line)
	}

	sections := []MessageSection{
		{Title: "signal", Lines: summary},
		{Title: "phases", Lines: phaseLines},
	}
	if len(sig.Reasons) > 0 {
		n := len(sig.Reasons)
		if n > 4 {
			n = 4
		}
		sections = append(sections, MessageSection{Title: "top drivers", Lines: sig.Reasons[:n]})
	}

	return StructuredMessage{
		Icon:      directionIcon(sig.Direction),
		Title:     fmt.Sprintf("%s %s", strings.ToUpper(strings.TrimSpace(sig.Symbol)), sig.Direction),
		Sections:  sections,
		Timestamp: sig.GeneratedAt,
	}
}
