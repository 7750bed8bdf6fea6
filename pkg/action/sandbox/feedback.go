package sandbox

import (
	"golang.org/x/text/language"

	"github.com/courtvoice/courtvoice/pkg/action"
)

// fallbackLanguage is tried when the active display language has no entry
// in a per-language message map.
const fallbackLanguage = "en"

// normalizeFeedback converts a run function's return value into feedback.
//
//	nil                      -> no feedback
//	string                   -> neutral feedback
//	table with message field -> structured feedback, default neutral
//	any other table          -> per-language message map
func normalizeFeedback(v any, activeLanguage string) *action.Feedback {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return &action.Feedback{Message: val, Sentiment: action.SentimentNeutral}
	case map[string]any:
		if msg, ok := val["message"]; ok {
			fb := &action.Feedback{
				Message:   resolveMessage(msg, activeLanguage),
				Sentiment: action.SentimentNeutral,
			}
			if s, ok := val["sentiment"].(string); ok && s != "" {
				fb.Sentiment = s
			}
			return fb
		}
		return &action.Feedback{
			Message:   resolveLanguageMap(val, activeLanguage),
			Sentiment: action.SentimentNeutral,
		}
	default:
		return nil
	}
}

// resolveMessage handles a message that is either a plain string or a
// per-language map.
func resolveMessage(v any, activeLanguage string) string {
	switch msg := v.(type) {
	case string:
		return msg
	case map[string]any:
		return resolveLanguageMap(msg, activeLanguage)
	default:
		return ""
	}
}

// resolveLanguageMap picks the best entry from a language->message table.
// Order: best match for the active language, then the fallback language,
// then the first available entry, then empty.
func resolveLanguageMap(m map[string]any, activeLanguage string) string {
	keys := make([]string, 0, len(m))
	tags := make([]language.Tag, 0, len(m))
	for k := range m {
		if _, ok := m[k].(string); !ok {
			continue
		}
		tag, err := language.Parse(k)
		if err != nil {
			continue
		}
		keys = append(keys, k)
		tags = append(tags, tag)
	}
	if len(tags) > 0 && activeLanguage != "" {
		if want, err := language.Parse(activeLanguage); err == nil {
			matcher := language.NewMatcher(tags)
			if _, idx, conf := matcher.Match(want); conf >= language.High {
				return m[keys[idx]].(string)
			}
		}
	}
	if s, ok := m[fallbackLanguage].(string); ok {
		return s
	}
	for _, k := range keys {
		return m[k].(string)
	}
	return ""
}
