package notesplugin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/schollz/collidertracker/internal/music"
	"github.com/schollz/collidertracker/internal/registry"
	"github.com/schollz/collidertracker/internal/trackermodel"
)

// MaxPhraseRecursionDepth bounds "@name" self-reference chains (§4.4,
// P10): at depth >= this the referenced expression evaluates to an
// empty phrase instead of recursing further.
const MaxPhraseRecursionDepth = 16

const (
	defaultVelocity = 80
	defaultGate     = 1
)

// ParseError carries a message and a byte offset within the source
// expression, matching the (ok, error_msg?, error_pos?) shape
// Validate returns.
type ParseError struct {
	Msg string
	Pos int
}

func (e *ParseError) Error() string { return e.Msg }

// isRest reports whether tok is the rest token ("r" or "-").
func isRest(tok string) bool {
	return tok == "r" || tok == "R" || tok == "-"
}

// isNoteOff reports whether tok is a note-off token ("x", "X", "off").
func isNoteOff(tok string) bool {
	return tok == "x" || tok == "X" || strings.EqualFold(tok, "off")
}

func isChordSeparator(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '|'
}

// splitTokens splits on chord separators (whitespace, ',', '|'),
// discarding empty tokens.
func splitTokens(s string) []string {
	return strings.FieldsFunc(s, isChordSeparator)
}

// Parse parses a notes-plugin expression into a Phrase, resolving any
// leading "@name" phrase reference through ctx.LookupPhrase (§4.4
// "Phrase reference") and appending whatever trailing content follows
// it. Every note in a chord (whitespace/','/'|'-separated notes with
// no phrase reference) is emitted at offset_rows=0, offset_ticks=0 on
// ctx.Channel.
func Parse(expr string, ctx *registry.EvalContext) (*trackermodel.Phrase, error) {
	expr = strings.TrimSpace(expr)
	phrase := trackermodel.NewPhrase()
	if expr == "" {
		return phrase, nil
	}

	if strings.HasPrefix(expr, "@") && len(expr) > 1 && isIdentStart(rune(expr[1])) {
		name, rest := splitPhraseRef(expr)
		ref, err := resolvePhraseRef(name, ctx)
		if err != nil {
			return nil, err
		}
		phrase.Append(ref.Events...)

		tail, err := Parse(rest, ctx)
		if err != nil {
			return nil, err
		}
		phrase.Append(tail.Events...)
		return phrase, nil
	}

	tokens := splitTokens(expr)
	channel := trackermodel.ClampChannel(ctx.Channel)
	for _, tok := range tokens {
		switch {
		case isRest(tok):
			continue
		case isNoteOff(tok):
			phrase.Append(trackermodel.Event{
				Type:    trackermodel.NoteOff,
				Channel: channel,
				Data1:   trackermodel.AllNotesSentinel,
			})
		default:
			ev, err := parseNoteToken(tok, channel)
			if err != nil {
				return nil, err
			}
			phrase.Append(ev)
		}
	}
	return phrase, nil
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentChar(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

// splitPhraseRef splits "@name rest..." into (name, rest).
func splitPhraseRef(expr string) (name, rest string) {
	i := 1
	for i < len(expr) && isIdentChar(rune(expr[i])) {
		i++
	}
	return expr[1:i], strings.TrimSpace(expr[i:])
}

func resolvePhraseRef(name string, ctx *registry.EvalContext) (*trackermodel.Phrase, error) {
	if ctx.PhraseRecursionDepth >= MaxPhraseRecursionDepth {
		return trackermodel.NewPhrase(), nil
	}
	if ctx.LookupPhrase == nil {
		return trackermodel.NewPhrase(), nil
	}
	refExpr, langID, ok := ctx.LookupPhrase(name)
	if !ok {
		return trackermodel.NewPhrase(), nil
	}
	if langID != "" && langID != LanguageID {
		// A reference to another language's phrase is outside this
		// plugin's contract; evaluating it is the registry's job, not
		// the notes parser's. Treat it as empty rather than guessing.
		return trackermodel.NewPhrase(), nil
	}
	sub := *ctx
	sub.PhraseRecursionDepth = ctx.PhraseRecursionDepth + 1
	return Parse(refExpr, &sub)
}

// parseNoteToken parses one note literal plus its optional velocity
// and gate suffixes, e.g. "D#5@100~2".
func parseNoteToken(tok string, channel int) (trackermodel.Event, error) {
	if len(tok) == 0 {
		return trackermodel.Event{}, &ParseError{Msg: "empty note token"}
	}
	letter := tok[0]
	if !isLetterToken(letter) {
		return trackermodel.Event{}, &ParseError{Msg: fmt.Sprintf("unrecognized token %q", tok), Pos: 0}
	}
	i := 1
	var accidentals strings.Builder
	for i < len(tok) && (tok[i] == '#' || tok[i] == 'b') {
		accidentals.WriteByte(tok[i])
		i++
	}

	octStart := i
	for i < len(tok) && tok[i] >= '0' && tok[i] <= '9' && i-octStart < 2 {
		i++
	}
	hasOctave := i > octStart
	octave := 4
	if hasOctave {
		o, _ := strconv.Atoi(tok[octStart:i])
		octave = o
	}

	midi, ok := music.NoteNameToMidi(letter, accidentals.String(), octave, hasOctave)
	if !ok {
		return trackermodel.Event{}, &ParseError{Msg: fmt.Sprintf("invalid note letter in %q", tok), Pos: 0}
	}

	velocity := defaultVelocity
	gate := defaultGate

	for i < len(tok) {
		switch tok[i] {
		case '@', 'v', 'V':
			i++
			start := i
			i = scanSignedInt(tok, i)
			if i == start {
				return trackermodel.Event{}, &ParseError{Msg: fmt.Sprintf("expected integer velocity in %q", tok), Pos: i}
			}
			v, _ := strconv.Atoi(tok[start:i])
			velocity = trackermodel.ClampData(v)
		case '~':
			i++
			start := i
			i = scanSignedInt(tok, i)
			if i == start {
				return trackermodel.Event{}, &ParseError{Msg: fmt.Sprintf("expected integer gate in %q", tok), Pos: i}
			}
			g, _ := strconv.Atoi(tok[start:i])
			if g < 0 {
				g = 0
			}
			gate = g
		default:
			return trackermodel.Event{}, &ParseError{Msg: fmt.Sprintf("unexpected character %q in %q", tok[i], tok), Pos: i}
		}
	}

	return trackermodel.Event{
		Type:     trackermodel.NoteOn,
		Channel:  channel,
		Data1:    midi,
		Data2:    velocity,
		GateRows: gate,
	}, nil
}

func scanSignedInt(s string, i int) int {
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start || (i == start+1 && (s[start] == '+' || s[start] == '-')) {
		return start
	}
	return i
}

func isLetterToken(b byte) bool {
	l := b | 0x20
	return l >= 'a' && l <= 'g'
}

// Validate reports whether expr parses cleanly against a neutral
// context (channel 0, no phrase library), used by the registry's
// Validate capability.
func Validate(expr string) (ok bool, msg string, pos int) {
	ctx := &registry.EvalContext{}
	_, err := Parse(expr, ctx)
	if err == nil {
		return true, "", 0
	}
	if pe, ok := err.(*ParseError); ok {
		return false, pe.Msg, pe.Pos
	}
	return false, err.Error(), 0
}

// IsGenerator reports whether expr's evaluation depends on something
// beyond its own text — here, a leading phrase reference, whose
// target may change independently of this cell's Dirty flag.
func IsGenerator(expr string) bool {
	expr = strings.TrimSpace(expr)
	return strings.HasPrefix(expr, "@") && len(expr) > 1 && isIdentStart(rune(expr[1]))
}
