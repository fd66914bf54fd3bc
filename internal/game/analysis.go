package game

import (
	"strconv"
	"strings"
	"time"
)

const (
	AnalysisSenderID   = "ai"
	AnalysisSenderName = "AI Assistant"
	AnalysisFailedText = "AI feedback is unavailable right now."
)

// Quick grammar checks arrive as partials prefixed with a status label; they
// are progress hints, not part of the feedback text.
var quickCheckPrefixes = []string{"NO_ERRORS", "MINOR_ERRORS", "MAJOR_ERRORS", "PERFECT"}

func reduceAnalysis(s *Session, ev Event, at time.Time) {
	switch e := ev.(type) {
	case AnalysisRequested:
		s.AIBusy = true
		s.AIDraft = ""

	case AnalysisPartial:
		s.AIBusy = true
		if text := strings.TrimSpace(e.Text); text != "" && !isQuickCheck(text) {
			s.AIDraft = strings.TrimSpace(s.AIDraft + " " + text)
		}

	case AnalysisFinal:
		text := strings.TrimSpace(strings.TrimSpace(s.AIDraft) + " " + strings.TrimSpace(e.Text))
		s.AIBusy = false
		s.AIDraft = ""
		s.Messages = withoutSyntheticPlaceholders(s.Messages)
		if text == "" {
			return
		}
		s.Messages, _ = ApplyIncoming(s.Messages, Message{
			ID:         "ai-" + strconv.FormatInt(at.UnixNano(), 10),
			SenderID:   AnalysisSenderID,
			SenderName: AnalysisSenderName,
			Content:    text,
			Timestamp:  at,
			Final:      true,
		})

	case AnalysisFailed:
		s.AIBusy = false
		s.AIDraft = ""
		s.Messages = withoutSyntheticPlaceholders(s.Messages)
		s.Messages, _ = ApplyIncoming(s.Messages, Message{
			ID:         "ai-error-" + strconv.FormatInt(at.UnixNano(), 10),
			SenderID:   "system",
			SenderName: "System",
			Content:    AnalysisFailedText,
			Timestamp:  at,
			Final:      true,
		})
	}
}

func isQuickCheck(text string) bool {
	upper := strings.ToUpper(text)
	for _, p := range quickCheckPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

func withoutSyntheticPlaceholders(list []Message) []Message {
	out := list[:0:0]
	for _, m := range list {
		if m.IsOptimistic && IsSynthetic(m) {
			continue
		}
		out = append(out, m)
	}
	return out
}
