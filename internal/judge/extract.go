package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/coderated/gradepipe/internal/domain"
)

// ErrNoStructuredResult indicates a judge response with no extractable
// {score, reason} object. The worker counts these per answer and retires
// the task after the failure threshold.
var ErrNoStructuredResult = errors.New("no extractable structured result")

// Extract pulls a JudgeResult out of a judge's free-form response text.
// Judges do not reliably emit clean JSON, so strategies are applied in
// order until one yields a candidate object containing both "score" and
// "reason":
//
//  1. a response that already starts with '{' is taken whole
//  2. a response starting with a bare "reason key is reclosed as an object
//  3. otherwise the first balanced object inside a ``` fence is taken
//  4. failing that, the first balanced object anywhere in the text
//
// Candidates that fail to parse as-is get one pass of repair heuristics
// before being rejected. The returned bool reports whether the score or
// candidate needed repair.
func Extract(raw string) (domain.JudgeResult, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.JudgeResult{}, false, fmt.Errorf("%w: empty response", ErrNoStructuredResult)
	}

	var candidate string
	bare := false
	reclosed := false

	switch {
	case strings.HasPrefix(trimmed, "{"):
		candidate = trimmed
		bare = true
	case strings.HasPrefix(trimmed, `"reason`):
		// Broken output that lost its opening brace.
		candidate = "{\n" + trimmed
		bare = true
		reclosed = true
	default:
		obj, ok := findFencedObject(trimmed)
		if !ok {
			obj, ok = findAnyObject(trimmed)
		}
		if !ok {
			return domain.JudgeResult{}, false, fmt.Errorf("%w: no JSON object found", ErrNoStructuredResult)
		}
		candidate = obj
	}

	// Never accept a candidate missing either field; a half-result would
	// desync votes from reasons in the ledger.
	if !strings.Contains(candidate, "score") || !strings.Contains(candidate, "reason") {
		return domain.JudgeResult{}, false, fmt.Errorf("%w: candidate missing score or reason", ErrNoStructuredResult)
	}

	result, repaired, err := parseResult(candidate)
	if err != nil && bare {
		if result, repaired, err = parseResult(repairCandidate(candidate)); err == nil {
			repaired = true
		}
	}
	if err != nil {
		return domain.JudgeResult{}, false, err
	}
	return result, repaired || reclosed, nil
}

// findFencedObject locates a balanced JSON object inside a markdown code
// fence, preferring ```json fences over anonymous ones.
func findFencedObject(s string) (string, bool) {
	for _, marker := range []string{"```json", "```"} {
		offset := 0
		for {
			i := strings.Index(s[offset:], marker)
			if i < 0 {
				break
			}
			rest := s[offset+i+len(marker):]
			braceAt := strings.Index(rest, "{")
			fenceEnd := strings.Index(rest, "```")
			if braceAt >= 0 && (fenceEnd < 0 || braceAt < fenceEnd) {
				if obj, ok := scanObject(rest[braceAt:]); ok &&
					strings.Contains(obj, "score") && strings.Contains(obj, "reason") {
					return obj, true
				}
			}
			offset += i + len(marker)
		}
	}
	return "", false
}

// findAnyObject returns the first balanced object in the text containing
// both required substrings. Last-resort strategy for judges that ignore
// the fencing instruction.
func findAnyObject(s string) (string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if obj, ok := scanObject(s[i:]); ok &&
			strings.Contains(obj, "score") && strings.Contains(obj, "reason") {
			return obj, true
		}
	}
	return "", false
}

// scanObject returns the balanced JSON object starting at s[0]. It tracks
// brace depth, string state, and escapes so nested braces and braces inside
// string values do not fool it.
func scanObject(s string) (string, bool) {
	if len(s) == 0 || s[0] != '{' {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// repairCandidate applies light fixes to a candidate that did not parse:
// stray backslashes and fence markers are stripped, runaway quotes inside
// the reason value are collapsed to apostrophes, and trailing content after
// the last plausible closing brace is truncated. Invalid JSON tends to come
// from models that skipped the code fence, so this only runs on bare
// candidates.
func repairCandidate(s string) string {
	s = stripStrayBackslashes(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")

	if strings.Count(s, `"`) > 4 {
		reasonIdx := strings.Index(s, `"reason": "`)
		scoreIdx := strings.Index(s, `"score"`)
		if reasonIdx >= 0 && scoreIdx-10 > reasonIdx+11 {
			inner := s[reasonIdx+11 : scoreIdx-10]
			s = strings.Replace(s, inner, strings.ReplaceAll(inner, `"`, "'"), 1)
		}
	}

	lastBrace := strings.LastIndex(s, "}")
	scoreIdx := strings.LastIndex(s, `"score"`)
	if lastBrace >= 0 && scoreIdx >= 0 && lastBrace-scoreIdx > 5 {
		s = s[:lastBrace+1]
	}

	return s
}

// stripStrayBackslashes removes backslashes that do not begin a valid JSON
// escape sequence, leaving legitimate escapes like \" and \n intact.
func stripStrayBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				b.WriteByte(s[i])
				b.WriteByte(s[i+1])
				i++
				continue
			default:
				continue // drop the stray backslash
			}
		}
		if s[i] == '\\' {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// flexScore accepts the score as a JSON number or a numeric string.
type flexScore float64

func (n *flexScore) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseFloat(strings.Trim(string(data), `"`), 64)
	if err != nil {
		return err
	}
	*n = flexScore(v)
	return nil
}

// parseResult unmarshals a candidate and enforces that both fields are
// present. Fractional or NaN scores are repaired per the ledger's rules.
func parseResult(jsonStr string) (domain.JudgeResult, bool, error) {
	var payload struct {
		Score  *flexScore `json:"score"`
		Reason *string    `json:"reason"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return domain.JudgeResult{}, false, fmt.Errorf("%w: %v", ErrNoStructuredResult, err)
	}
	if payload.Score == nil {
		return domain.JudgeResult{}, false, fmt.Errorf("%w: %v", ErrNoStructuredResult, domain.ErrMissingScore)
	}
	if payload.Reason == nil {
		return domain.JudgeResult{}, false, fmt.Errorf("%w: %v", ErrNoStructuredResult, domain.ErrMissingReason)
	}

	score, repaired := domain.RepairScore(float64(*payload.Score))
	result := domain.JudgeResult{Score: score, Reason: *payload.Reason}
	if err := result.Validate(); err != nil {
		return domain.JudgeResult{}, false, fmt.Errorf("%w: %v", ErrNoStructuredResult, err)
	}
	return result, repaired, nil
}
