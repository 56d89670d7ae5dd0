package catalog

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

//go:embed instruments.toml
var defaultCatalogData []byte

// Grammar selects how a subcommand's wire string is assembled from its
// base code and parameter values.
type Grammar int

const (
	// GrammarGeneric produces <prefix><base> optionally followed by a
	// colon and the comma-joined non-empty parameter values.
	GrammarGeneric Grammar = iota

	// GrammarVerbatim sends the base code unchanged, no parameters.
	GrammarVerbatim

	// GrammarTextAppend concatenates the base code and the upper-cased
	// text parameter with no separator. The text is required.
	GrammarTextAppend

	// GrammarHexAppend concatenates the base code and a hexadecimal mask
	// parameter with no separator.
	GrammarHexAppend
)

func (g Grammar) String() string {
	switch g {
	case GrammarGeneric:
		return "generic"
	case GrammarVerbatim:
		return "verbatim"
	case GrammarTextAppend:
		return "text"
	case GrammarHexAppend:
		return "hex"
	}
	return fmt.Sprintf("unknown (%d)", int(g))
}

// Subcommand describes one operation of an instrument. Params holds the
// parameter labels; their order defines the positional encoding and each
// label doubles as the placeholder text for its slot.
type Subcommand struct {
	Name        string
	WireBase    string
	Params      []string
	Grammar     Grammar
	Measurement bool
	Label       string // plot label for measurement commands, e.g. "DC Volts"
}

// Instrument is one catalog entry: a command prefix plus an ordered list
// of subcommands.
type Instrument struct {
	Name        string
	Prefix      string
	Subcommands []Subcommand

	index map[string]int
}

// Subcommand looks up a subcommand by name.
func (ins *Instrument) Subcommand(name string) (*Subcommand, bool) {
	i, ok := ins.index[name]
	if !ok {
		return nil, false
	}
	return &ins.Subcommands[i], true
}

// SubcommandNames returns the subcommand names in catalog order.
func (ins *Instrument) SubcommandNames() []string {
	names := make([]string, len(ins.Subcommands))
	for i := range ins.Subcommands {
		names[i] = ins.Subcommands[i].Name
	}
	return names
}

// Catalog is the static table of instruments and their wire-encoding
// rules. It is immutable once loaded.
type Catalog struct {
	Instruments []Instrument

	index map[string]int
}

// Instrument looks up an instrument by name.
func (c *Catalog) Instrument(name string) (*Instrument, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return &c.Instruments[i], true
}

// InstrumentNames returns the instrument names in catalog order.
func (c *Catalog) InstrumentNames() []string {
	names := make([]string, len(c.Instruments))
	for i := range c.Instruments {
		names[i] = c.Instruments[i].Name
	}
	return names
}

// TOML file structure
type tomlCatalog struct {
	Instrument []tomlInstrument `toml:"instrument"`
}

type tomlInstrument struct {
	Name       string           `toml:"name"`
	Prefix     string           `toml:"prefix"`
	Subcommand []tomlSubcommand `toml:"subcommand"`
}

type tomlSubcommand struct {
	Name        string   `toml:"name"`
	Base        string   `toml:"base"`
	Grammar     string   `toml:"grammar"`
	Params      []string `toml:"params"`
	Measurement bool     `toml:"measurement"`
	Label       string   `toml:"label"`
}

func parseGrammar(s string) (Grammar, error) {
	switch s {
	case "", "generic":
		return GrammarGeneric, nil
	case "verbatim":
		return GrammarVerbatim, nil
	case "text":
		return GrammarTextAppend, nil
	case "hex":
		return GrammarHexAppend, nil
	}
	return 0, fmt.Errorf("unknown grammar %q", s)
}

// Default loads the embedded instrument catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogData)
}

// Parse decodes and validates a TOML catalog.
func Parse(data []byte) (*Catalog, error) {
	var raw tomlCatalog
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog TOML: %w", err)
	}

	if len(raw.Instrument) == 0 {
		return nil, fmt.Errorf("catalog defines no instruments")
	}

	cat := &Catalog{
		Instruments: make([]Instrument, 0, len(raw.Instrument)),
		index:       make(map[string]int),
	}

	for _, ri := range raw.Instrument {
		if ri.Name == "" {
			return nil, fmt.Errorf("instrument with empty name in catalog")
		}
		if _, dup := cat.index[ri.Name]; dup {
			return nil, fmt.Errorf("duplicate instrument %q in catalog", ri.Name)
		}
		if len(ri.Subcommand) == 0 {
			return nil, fmt.Errorf("instrument %q has no subcommands", ri.Name)
		}

		ins := Instrument{
			Name:        ri.Name,
			Prefix:      ri.Prefix,
			Subcommands: make([]Subcommand, 0, len(ri.Subcommand)),
			index:       make(map[string]int),
		}

		for _, rs := range ri.Subcommand {
			if rs.Name == "" {
				return nil, fmt.Errorf("instrument %q has a subcommand with empty name", ri.Name)
			}
			if _, dup := ins.index[rs.Name]; dup {
				return nil, fmt.Errorf("instrument %q has duplicate subcommand %q", ri.Name, rs.Name)
			}
			if rs.Base == "" {
				return nil, fmt.Errorf("subcommand %q of %q has no wire base", rs.Name, ri.Name)
			}

			g, err := parseGrammar(rs.Grammar)
			if err != nil {
				return nil, fmt.Errorf("subcommand %q of %q: %w", rs.Name, ri.Name, err)
			}

			// Per-grammar parameter shape checks
			switch g {
			case GrammarVerbatim:
				if len(rs.Params) != 0 {
					return nil, fmt.Errorf("subcommand %q of %q is verbatim but lists %d params",
						rs.Name, ri.Name, len(rs.Params))
				}
			case GrammarTextAppend, GrammarHexAppend:
				if len(rs.Params) != 1 {
					return nil, fmt.Errorf("subcommand %q of %q needs exactly one param, has %d",
						rs.Name, ri.Name, len(rs.Params))
				}
			}

			if rs.Measurement && rs.Label == "" {
				return nil, fmt.Errorf("measurement subcommand %q of %q has no label", rs.Name, ri.Name)
			}

			ins.index[rs.Name] = len(ins.Subcommands)
			ins.Subcommands = append(ins.Subcommands, Subcommand{
				Name:        rs.Name,
				WireBase:    rs.Base,
				Params:      rs.Params,
				Grammar:     g,
				Measurement: rs.Measurement,
				Label:       rs.Label,
			})
		}

		cat.index[ri.Name] = len(cat.Instruments)
		cat.Instruments = append(cat.Instruments, ins)
	}

	return cat, nil
}
