package codegen

import (
	"fmt"
	"strings"
)

// FragmentKind classifies one output fragment.
type FragmentKind int

const (
	// HostFragment is original source text carried through verbatim.
	HostFragment FragmentKind = iota
	// SynthFragment is generated text with no original position.
	SynthFragment
	// MarkerFragment remaps subsequent lines back to the original file.
	MarkerFragment
)

// Fragment is one position-tagged piece of output. The arena accumulates
// fragments instead of mutating a single buffer, so a failed translation
// can be discarded without having written partial output, and the line-map
// emitter can reason about marker placement.
type Fragment struct {
	Kind FragmentKind
	Text string
	Line int    // original line for Host and Marker fragments
	File string // marker file override; empty means the arena's file
}

// Arena accumulates position-tagged output fragments for one translation
// unit.
type Arena struct {
	file  string
	frags []Fragment
}

// NewArena creates an arena emitting markers for the given original file
// name.
func NewArena(file string) *Arena {
	return &Arena{file: file, frags: make([]Fragment, 0, 64)}
}

// Host appends original source text beginning at the given line.
func (a *Arena) Host(text string, line int) {
	if text == "" {
		return
	}
	a.frags = append(a.frags, Fragment{Kind: HostFragment, Text: text, Line: line})
}

// Synth appends generated text.
func (a *Arena) Synth(text string) {
	a.frags = append(a.frags, Fragment{Kind: SynthFragment, Text: text})
}

// Marker appends a remap directive pointing subsequent output at the given
// original line.
func (a *Arena) Marker(line int) {
	a.MarkerIn(line, "")
}

// MarkerIn appends a remap directive naming a different original file, used
// while an included file's content is being translated inline.
func (a *Arena) MarkerIn(line int, file string) {
	// collapse consecutive markers; only the last one matters
	if len(a.frags) > 0 && a.frags[len(a.frags)-1].Kind == MarkerFragment {
		a.frags[len(a.frags)-1].Line = line
		a.frags[len(a.frags)-1].File = file

		return
	}
	a.frags = append(a.frags, Fragment{Kind: MarkerFragment, Line: line, File: file})
}

// Fragments returns the accumulated fragments.
func (a *Arena) Fragments() []Fragment {
	return a.frags
}

// String renders the final output. Markers are emitted as #line directives
// on their own lines; a marker directly after text that does not end in a
// newline starts one first, so the directive lands in column zero.
func (a *Arena) String() string {
	var out strings.Builder

	atLineStart := true

	for _, f := range a.frags {
		switch f.Kind {
		case MarkerFragment:
			if !atLineStart {
				out.WriteByte('\n')
			}

			file := f.File
			if file == "" {
				file = a.file
			}

			fmt.Fprintf(&out, "#line %d \"%s\"\n", f.Line, file)
			atLineStart = true
		default:
			if f.Text == "" {
				continue
			}
			out.WriteString(f.Text)
			atLineStart = strings.HasSuffix(f.Text, "\n")
		}
	}

	return out.String()
}
