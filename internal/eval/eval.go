// Package eval scores a transcribed utterance against the phrase the speaker
// was asked to say. Scoring is word-based: each expected word is marked
// correct if it appears anywhere in the transcription after normalisation,
// so word order and repeated words do not affect the result.
package eval

import (
	"math"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// hintThreshold is the minimum Jaro-Winkler similarity between an expected
// word and its closest transcribed word for a "did you mean" hint to be
// attached to an incorrect word.
const hintThreshold = 0.5

// WordEvaluation is the per-word verdict for one expected word. Word keeps
// the casing of the expected phrase so clients can render it verbatim.
type WordEvaluation struct {
	Word       string  `json:"word"`
	Correct    bool    `json:"correct"`
	Hint       string  `json:"hint,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

// Result is the full outcome of evaluating one recording attempt.
type Result struct {
	TranscribedText string           `json:"transcribed_text"`
	ExpectedPhrase  string           `json:"expected_phrase"`
	WordEvaluations []WordEvaluation `json:"word_evaluations"`
	OverallScore    int              `json:"overall_score"`
	AllCorrect      bool             `json:"all_correct"`
}

// Normalize lowercases s, strips punctuation except apostrophes, and
// collapses runs of whitespace to single spaces. Letters and digits from any
// script are kept, so accented characters survive intact.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
			b.WriteRune('\'')
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Evaluate scores transcribed speech against the expected phrase. Every word
// of the expected phrase yields exactly one WordEvaluation, in phrase order.
// A word counts as correct when its normalised form appears among the
// normalised transcribed words, regardless of position or multiplicity.
//
// Incorrect words carry a best-effort hint: the closest transcribed word by
// Jaro-Winkler similarity, when that similarity reaches 0.5. An expected
// phrase with no scoreable words yields a perfect score.
func Evaluate(transcribed, expected string) Result {
	res := Result{
		TranscribedText: transcribed,
		ExpectedPhrase:  expected,
	}

	transcribedWords := strings.Fields(Normalize(transcribed))
	spoken := make(map[string]struct{}, len(transcribedWords))
	for _, w := range transcribedWords {
		spoken[w] = struct{}{}
	}

	expectedWords := strings.Fields(expected)
	correct := 0
	for _, word := range expectedWords {
		ev := WordEvaluation{Word: word}
		norm := Normalize(word)
		if norm == "" {
			// Pure punctuation token; nothing to pronounce.
			ev.Correct = true
		} else if _, ok := spoken[norm]; ok {
			ev.Correct = true
		} else {
			ev.Hint, ev.Similarity = closestMatch(norm, transcribedWords)
		}
		if ev.Correct {
			correct++
		}
		res.WordEvaluations = append(res.WordEvaluations, ev)
	}

	if len(expectedWords) == 0 {
		// Nothing was expected, so nothing can be wrong.
		res.OverallScore = 100
		res.AllCorrect = true
		return res
	}

	res.OverallScore = int(math.Round(100 * float64(correct) / float64(len(expectedWords))))
	res.AllCorrect = correct == len(expectedWords)
	return res
}

// closestMatch returns the transcribed word most similar to the expected
// word, with its Jaro-Winkler similarity, or ("", 0) when no candidate
// reaches the hint threshold.
func closestMatch(expected string, candidates []string) (string, float64) {
	var (
		best    string
		bestSim float64
	)
	for _, c := range candidates {
		sim := matchr.JaroWinkler(expected, c, true)
		if sim > bestSim {
			best, bestSim = c, sim
		}
	}
	if bestSim < hintThreshold {
		return "", 0
	}
	return best, bestSim
}
