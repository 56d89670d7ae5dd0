// Package encoder turns an (instrument, subcommand, parameter values)
// triple into the exact wire string the instrument expects. The line
// terminator is appended by the caller, not here.
package encoder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/labshed/gpibctl/catalog"
)

// Validation failures. All are rejected before any I/O is attempted.
var (
	ErrNoInstrument = errors.New("no instrument selected")
	ErrNoSubcommand = errors.New("no subcommand selected")
	ErrTextRequired = errors.New("display text cannot be empty")
)

// Request is one pending command: the selected catalog entry plus the
// operator's raw entry values. Placeholders holds the placeholder label
// assigned to each slot; a value still equal to its slot's placeholder
// counts as unset. When Placeholders is nil the subcommand's parameter
// labels are used, which is how the entry fields are labelled.
type Request struct {
	Instrument   string
	Subcommand   string
	Values       []string
	Placeholders []string
}

// Encode builds the wire string for req. It is a pure function of its
// inputs: identical requests always produce the identical string. The
// matched subcommand is returned so the caller can act on its tags.
func Encode(cat *catalog.Catalog, req Request) (string, *catalog.Subcommand, error) {
	if req.Instrument == "" {
		return "", nil, ErrNoInstrument
	}
	if req.Subcommand == "" {
		return "", nil, ErrNoSubcommand
	}

	ins, ok := cat.Instrument(req.Instrument)
	if !ok {
		return "", nil, fmt.Errorf("unknown instrument %q", req.Instrument)
	}
	sub, ok := ins.Subcommand(req.Subcommand)
	if !ok {
		return "", nil, fmt.Errorf("instrument %q has no subcommand %q", req.Instrument, req.Subcommand)
	}

	values := filterPlaceholders(req, sub)

	switch sub.Grammar {
	case catalog.GrammarVerbatim:
		return sub.WireBase, sub, nil

	case catalog.GrammarTextAppend:
		text := firstValue(values)
		if text == "" {
			return "", nil, ErrTextRequired
		}
		return sub.WireBase + strings.ToUpper(text), sub, nil

	case catalog.GrammarHexAppend:
		mask := firstValue(values)
		if mask == "" {
			return sub.WireBase, sub, nil
		}
		if _, err := strconv.ParseUint(mask, 16, 32); err != nil {
			return "", nil, fmt.Errorf("invalid hex mask %q", mask)
		}
		return sub.WireBase + mask, sub, nil

	case catalog.GrammarGeneric:
		var parts []string
		for _, v := range values {
			if v != "" {
				parts = append(parts, v)
			}
		}
		wire := ins.Prefix + sub.WireBase
		if len(parts) > 0 {
			wire += ":" + strings.Join(parts, ",")
		}
		return wire, sub, nil
	}

	return "", nil, fmt.Errorf("subcommand %q has unsupported grammar %s", sub.Name, sub.Grammar)
}

// filterPlaceholders blanks every slot whose value still equals the
// placeholder assigned to that slot. The comparison is positional: slot i
// against label i, since labels differ per subcommand.
func filterPlaceholders(req Request, sub *catalog.Subcommand) []string {
	placeholders := req.Placeholders
	if placeholders == nil {
		placeholders = sub.Params
	}

	values := make([]string, len(req.Values))
	for i, v := range req.Values {
		v = strings.TrimSpace(v)
		if i < len(placeholders) && v == placeholders[i] {
			continue
		}
		values[i] = v
	}
	return values
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
