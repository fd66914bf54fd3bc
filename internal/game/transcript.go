package game

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

type MergeOutcome int

const (
	MergeAppended MergeOutcome = iota
	MergeUpdated
	MergeConfirmed
	MergeUpgraded
	MergeDuplicate
	MergeMarker
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeAppended:
		return "appended"
	case MergeUpdated:
		return "updated"
	case MergeConfirmed:
		return "confirmed"
	case MergeUpgraded:
		return "upgraded"
	case MergeDuplicate:
		return "duplicate"
	case MergeMarker:
		return "marker"
	default:
		return "unknown"
	}
}

// UpgradeWindow bounds how far apart an optimistic entry and its server copy
// may be when matched by sender and content alone.
const UpgradeWindow = 2 * time.Minute

// FragmentRunes is the length below which non-final synthetic text is treated
// as a streaming fragment.
const FragmentRunes = 24

var (
	syntheticIDs   = map[string]struct{}{"ai": {}, "system": {}, "ai-assistant": {}}
	syntheticNames = map[string]struct{}{"ai": {}, "ai assistant": {}, "system": {}, "game master": {}, "wordmaster ai": {}}

	placeholderRe = regexp.MustCompile(`^(ai (is )?)?(analy[sz]ing|thinking|processing|checking|typing)( [a-z]+){0,2} ?(\.{1,3}|…)?$`)
)

// Normalize folds case and collapses whitespace so equal utterances compare equal.
func Normalize(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

func IsSynthetic(m Message) bool {
	if _, ok := syntheticIDs[strings.ToLower(strings.TrimSpace(m.SenderID))]; ok {
		return true
	}
	_, ok := syntheticNames[Normalize(m.SenderName)]
	return ok
}

// IsStreamingMarker reports typing, partial and placeholder entries that
// must never enter the transcript.
func IsStreamingMarker(m Message) bool {
	if m.Partial {
		return true
	}
	content := Normalize(m.Content)
	if content == "" {
		return IsSynthetic(m)
	}
	if m.SenderID != "" && !IsSynthetic(m) {
		return false
	}
	if IsSynthetic(m) && !m.Final && utf8.RuneCountInString(content) < FragmentRunes {
		return true
	}
	return placeholderRe.MatchString(content)
}

// ApplyIncoming merges one candidate into a timestamp-ordered transcript.
// The input slice is not modified.
func ApplyIncoming(list []Message, c Message) ([]Message, MergeOutcome) {
	if IsStreamingMarker(c) {
		return list, MergeMarker
	}
	if c.ID == "" && !c.Timestamp.IsZero() {
		c.ID = derivedID(c)
	}
	out := append([]Message(nil), list...)

	if c.ID != "" {
		for i := range out {
			if out[i].ID == c.ID {
				out[i] = mergeFields(out[i], c)
				return sortByTime(out), MergeUpdated
			}
		}
	}

	if c.ClientMessageID != "" {
		for i := range out {
			if (out[i].IsOptimistic && out[i].ID == c.ClientMessageID) || out[i].ClientMessageID == c.ClientMessageID {
				out[i] = confirmed(out[i], c)
				return sortByTime(out), MergeConfirmed
			}
		}
	}

	norm := Normalize(c.Content)
	for i := range out {
		m := out[i]
		if !m.IsOptimistic || m.SenderID != c.SenderID || Normalize(m.Content) != norm {
			continue
		}
		if !withinWindow(m.Timestamp, c.Timestamp) {
			continue
		}
		out[i] = confirmed(m, c)
		return sortByTime(out), MergeUpgraded
	}

	if IsSynthetic(c) && len(out) > 0 {
		last := out[len(out)-1]
		if IsSynthetic(last) && syntheticKey(last) == syntheticKey(c) && Normalize(last.Content) == norm {
			return list, MergeDuplicate
		}
	}

	out = append(out, canonical(c))
	return sortByTime(out), MergeAppended
}

func canonical(c Message) Message {
	c.Partial, c.Final = false, false
	c.IsOptimistic = false
	c.Status = StatusConfirmed
	if c.GrammarStatus == "" {
		c.GrammarStatus = GrammarProcessing
	}
	return c
}

// confirmed replaces an optimistic slot with the server copy, keeping the
// local identifiers the server did not echo back.
func confirmed(old, c Message) Message {
	next := canonical(c)
	if next.ID == "" {
		next.ID = old.ID
	}
	if next.ClientMessageID == "" {
		next.ClientMessageID = old.ClientMessageID
	}
	if next.Timestamp.IsZero() {
		next.Timestamp = old.Timestamp
	}
	if next.SenderName == "" {
		next.SenderName = old.SenderName
	}
	if next.Content == "" {
		next.Content = old.Content
	}
	if old.GrammarStatus.Terminal() && !next.GrammarStatus.Terminal() {
		next.GrammarStatus = old.GrammarStatus
		next.GrammarFeedback = old.GrammarFeedback
	}
	return next
}

func mergeFields(old, c Message) Message {
	next := old
	if c.ClientMessageID != "" {
		next.ClientMessageID = c.ClientMessageID
	}
	if c.SenderID != "" {
		next.SenderID = c.SenderID
	}
	if c.SenderName != "" {
		next.SenderName = c.SenderName
	}
	if c.Content != "" {
		next.Content = c.Content
	}
	if !c.Timestamp.IsZero() {
		next.Timestamp = c.Timestamp
	}
	if c.GrammarStatus != "" && (c.GrammarStatus.Terminal() || !old.GrammarStatus.Terminal()) {
		next.GrammarStatus = c.GrammarStatus
	}
	if c.GrammarFeedback != "" {
		next.GrammarFeedback = c.GrammarFeedback
	}
	if next.GrammarStatus == "" {
		next.GrammarStatus = GrammarProcessing
	}
	next.IsOptimistic = false
	next.Status = StatusConfirmed
	next.Partial, next.Final = false, false
	return next
}

func withinWindow(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return true
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= UpgradeWindow
}

func syntheticKey(m Message) string {
	if id := strings.ToLower(strings.TrimSpace(m.SenderID)); id != "" {
		return id
	}
	return Normalize(m.SenderName)
}

func derivedID(m Message) string {
	return "msg-" + m.SenderID + "-" + strconv.FormatInt(m.Timestamp.UnixMilli(), 10)
}

func sortByTime(list []Message) []Message {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
	return list
}
