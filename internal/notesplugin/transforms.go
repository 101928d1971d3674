package notesplugin

import (
	"fmt"

	"github.com/schollz/collidertracker/internal/modulation"
	"github.com/schollz/collidertracker/internal/registry"
	"github.com/schollz/collidertracker/internal/trackermodel"
)

// transformDef pairs a TransformFn with the documentation strings
// DescribeTransform/GetTransformParamsDoc expose.
type transformDef struct {
	fn     registry.TransformFn
	doc    string
	params string
}

// transformTable is the built-in transform library (§4.4). Keys are
// canonical names only; aliases live in the separate aliases map, which
// lookupTransform consults so GetTransform resolves either spelling.
var transformTable map[string]transformDef

func init() {
	transformTable = map[string]transformDef{
		"transpose": {fn: transposeFn, doc: "shifts NoteOn/NoteOff pitch by a fixed number of semitones", params: "semitones:int"},
		"velocity":  {fn: velocityFn, doc: "sets every NoteOn's velocity to a fixed value", params: "v:int (0-127)"},
		"octave":    {fn: octaveFn, doc: "shifts pitch by whole octaves", params: "octaves:int"},
		"invert":    {fn: invertFn, doc: "mirrors pitch around a pivot note", params: "pivot:note-name|int (default 60)"},
		"arpeggio":  {fn: arpeggioFn, doc: "spreads a chord's NoteOns out in time", params: "speed:int ticks (1-48, default 4)"},
		"delay":     {fn: delayFn, doc: "appends decaying echoes of every note", params: "time:int,feedback:int(0-8),decay:int%(0-100)"},
		"ratchet":   {fn: ratchetFn, doc: "replaces each NoteOn with rapid repeats", params: "count:int(1-16),speed:int ticks(1-24)"},
		"humanize":  {fn: humanizeFn, doc: "applies small deterministic timing/velocity jitter", params: "timing:int(0-12),velocity:int(0-64)"},
		"chance":    {fn: chanceFn, doc: "probabilistically drops notes", params: "percent:int(0-100)"},
		"reverse":   {fn: reverseFn, doc: "mirrors event timing within the phrase", params: ""},
		"stutter":   {fn: stutterFn, doc: "repeats the whole phrase with volume decay", params: "count:int(1-8),decay:int%(0-100)"},
		"scale":     {fn: scaleFn, doc: "quantizes pitch to the nearest note in a named scale", params: "name:string,root:int(0-11)"},
	}
}

var aliases = map[string]string{
	"tr": "transpose", "vel": "velocity", "oct": "octave", "inv": "invert",
	"arp": "arpeggio", "rat": "ratchet", "hum": "humanize", "prob": "chance",
	"rev": "reverse", "stut": "stutter", "sc": "scale",
}

func lookupTransform(name string) (transformDef, bool) {
	if def, ok := transformTable[name]; ok {
		return def, true
	}
	if canonical, ok := aliases[name]; ok {
		return transformTable[canonical], true
	}
	return transformDef{}, false
}

func isPitchEvent(e trackermodel.Event) bool {
	return e.Type == trackermodel.NoteOn || e.Type == trackermodel.NoteOff
}

func transposeFn(input *trackermodel.Phrase, raw string, _ *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	semitones := intField(fields, 0, 0)
	if semitones == 0 {
		return input, nil // identity (P7)
	}
	out := input.Clone()
	for i := range out.Events {
		if isPitchEvent(out.Events[i]) {
			out.Events[i].Data1 = trackermodel.ClampData(out.Events[i].Data1 + semitones)
		}
	}
	return out, nil
}

func velocityFn(input *trackermodel.Phrase, raw string, _ *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	v := trackermodel.ClampData(intField(fields, 0, defaultVelocity))
	out := input.Clone()
	changed := false
	for i := range out.Events {
		if out.Events[i].Type == trackermodel.NoteOn {
			if out.Events[i].Data2 != v {
				changed = true
			}
			out.Events[i].Data2 = v
		}
	}
	if !changed {
		return input, nil
	}
	return out, nil
}

func octaveFn(input *trackermodel.Phrase, raw string, ctx *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	octaves := intField(fields, 0, 0)
	if octaves == 0 {
		return input, nil
	}
	return transposeFn(input, fmt.Sprintf("%d", octaves*12), ctx)
}

func invertFn(input *trackermodel.Phrase, raw string, _ *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	pivot, err := parsePivot(firstField(fields), 60)
	if err != nil {
		return nil, err
	}
	out := input.Clone()
	for i := range out.Events {
		if isPitchEvent(out.Events[i]) {
			out.Events[i].Data1 = trackermodel.ClampData(2*pivot - out.Events[i].Data1)
		}
	}
	return out, nil
}

func firstField(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func arpeggioFn(input *trackermodel.Phrase, raw string, _ *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	speed := clamp(intField(fields, 0, 4), 1, 48)

	noteOnCount := 0
	for _, e := range input.Events {
		if e.Type == trackermodel.NoteOn {
			noteOnCount++
		}
	}
	if noteOnCount <= 1 {
		return input, nil
	}

	out := input.Clone()
	i := 0
	for idx := range out.Events {
		if out.Events[idx].Type == trackermodel.NoteOn {
			out.Events[idx].OffsetTicks += i * speed
			i++
		}
	}
	return out, nil
}

func delayFn(input *trackermodel.Phrase, raw string, _ *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	timeTicks := max1(intField(fields, 0, 4))
	feedback := clamp(intField(fields, 1, 0), 0, 8)
	decayPct := clamp(intField(fields, 2, 50), 0, 100)

	if feedback == 0 {
		return input, nil
	}

	out := input.Clone()
	base := make([]trackermodel.Event, len(input.Events))
	copy(base, input.Events)

	for echo := 1; echo <= feedback; echo++ {
		scale := 1.0
		for k := 0; k < echo; k++ {
			scale *= float64(decayPct) / 100.0
		}
		for _, e := range base {
			if e.Type != trackermodel.NoteOn && e.Type != trackermodel.NoteOff {
				continue
			}
			copyEv := e.Clone()
			copyEv.OffsetTicks += echo * timeTicks
			if copyEv.Type == trackermodel.NoteOn {
				v := int(float64(copyEv.Data2) * scale)
				if v < 1 {
					v = 1
				}
				copyEv.Data2 = trackermodel.ClampData(v)
			}
			out.Events = append(out.Events, copyEv)
		}
	}
	return out, nil
}

func ratchetFn(input *trackermodel.Phrase, raw string, _ *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	count := clamp(intField(fields, 0, 1), 1, 16)
	speed := clamp(intField(fields, 1, 6), 1, 24)
	if count <= 1 {
		return input, nil
	}

	out := trackermodel.NewPhrase()
	gateTicks := speed - 1
	if gateTicks < 1 {
		gateTicks = 1
	}
	for _, e := range input.Events {
		if e.Type != trackermodel.NoteOn {
			out.Append(e.Clone())
			continue
		}
		for i := 0; i < count; i++ {
			copyEv := e.Clone()
			copyEv.OffsetTicks = e.OffsetTicks + i*speed
			copyEv.GateRows = 0
			copyEv.GateTicks = gateTicks
			out.Append(copyEv)
		}
	}
	return out, nil
}

func humanizeFn(input *trackermodel.Phrase, raw string, ctx *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	timingRange := clamp(intField(fields, 0, 0), 0, 12)
	velocityRange := clamp(intField(fields, 1, 0), 0, 64)
	if timingRange == 0 && velocityRange == 0 {
		return input, nil
	}

	seed := ctx.RandomSeed
	out := input.Clone()
	for i := range out.Events {
		e := &out.Events[i]
		formula := e.Data1*17 + i*31 + e.OffsetTicks*7
		h := deterministicHash(formula, seed)

		if timingRange > 0 {
			span := 2*timingRange + 1
			offset := int(h%uint32(span)) - timingRange
			e.OffsetTicks += offset
			if e.OffsetTicks < 0 {
				e.OffsetTicks = 0
			}
		}
		if velocityRange > 0 && e.Type == trackermodel.NoteOn {
			h2 := deterministicHash(formula+1, seed)
			span := 2*velocityRange + 1
			offset := int(h2%uint32(span)) - velocityRange
			v := e.Data2 + offset
			if v < 1 {
				v = 1
			}
			e.Data2 = trackermodel.ClampData(v)
		}
	}
	return out, nil
}

func chanceFn(input *trackermodel.Phrase, raw string, ctx *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	percent := clamp(intField(fields, 0, 100), 0, 100)
	if percent >= 100 {
		return input, nil
	}

	dropped := make(map[[2]int]bool) // (channel, note) pairs whose NoteOn was dropped
	out := trackermodel.NewPhrase()
	for i, e := range input.Events {
		if e.Type == trackermodel.NoteOn {
			formula := e.Data1*23 + i*47 + e.OffsetTicks*13
			roll := formula % 100
			if roll < 0 {
				roll += 100
			}
			if roll >= percent {
				dropped[[2]int{e.Channel, e.Data1}] = true
				continue
			}
			out.Append(e.Clone())
			continue
		}
		if e.Type == trackermodel.NoteOff && dropped[[2]int{e.Channel, e.Data1}] {
			continue
		}
		out.Append(e.Clone())
	}
	return out, nil
}

func reverseFn(input *trackermodel.Phrase, _ string, _ *registry.EvalContext) (*trackermodel.Phrase, error) {
	if input.Len() == 0 {
		return input, nil
	}
	min, max := input.TickBounds()
	out := input.Clone()
	for i := range out.Events {
		out.Events[i].OffsetTicks = (max + min) - out.Events[i].OffsetTicks
	}
	return out, nil
}

func stutterFn(input *trackermodel.Phrase, raw string, _ *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	count := clamp(intField(fields, 0, 1), 1, 8)
	decayPct := clamp(intField(fields, 1, 100), 0, 100)
	if count <= 1 {
		return input, nil
	}
	_, max := input.TickBounds()
	phraseLength := max + 1

	out := trackermodel.NewPhrase()
	for rep := 0; rep < count; rep++ {
		scale := 1.0
		for k := 0; k < rep; k++ {
			scale *= float64(decayPct) / 100.0
		}
		for _, e := range input.Events {
			copyEv := e.Clone()
			copyEv.OffsetTicks += rep * phraseLength
			if copyEv.Type == trackermodel.NoteOn {
				v := int(float64(copyEv.Data2) * scale)
				if v < 1 {
					v = 1
				}
				copyEv.Data2 = trackermodel.ClampData(v)
			}
			out.Append(copyEv)
		}
	}
	return out, nil
}

func scaleFn(input *trackermodel.Phrase, raw string, _ *registry.EvalContext) (*trackermodel.Phrase, error) {
	fields := splitParams(raw)
	name := firstField(fields)
	if name == "" {
		name = "major"
	}
	root := clamp(intField(fields, 1, 0), 0, 11)

	out := input.Clone()
	for i := range out.Events {
		if isPitchEvent(out.Events[i]) {
			out.Events[i].Data1 = trackermodel.ClampData(modulation.QuantizeToScale(out.Events[i].Data1, name, root))
		}
	}
	return out, nil
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
