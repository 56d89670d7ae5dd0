package catalog

import (
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default() returned error: %v", err)
	}

	wantInstruments := []string{"Power Supply", "Chroma DC Load", "HP 3478A Multimeter"}
	names := cat.InstrumentNames()
	if len(names) != len(wantInstruments) {
		t.Fatalf("catalog has instruments %v, expected %v", names, wantInstruments)
	}
	for i, want := range wantInstruments {
		if names[i] != want {
			t.Errorf("instrument %d = %q, expected %q", i, names[i], want)
		}
	}

	ps, ok := cat.Instrument("Power Supply")
	if !ok {
		t.Fatal("Power Supply missing from catalog")
	}
	if ps.Prefix != "PS:" {
		t.Errorf("Power Supply prefix = %q, expected %q", ps.Prefix, "PS:")
	}
	sv, ok := ps.Subcommand("Set Voltage")
	if !ok {
		t.Fatal("Set Voltage missing from Power Supply")
	}
	if sv.WireBase != "VSET" || len(sv.Params) != 2 {
		t.Errorf("Set Voltage = base %q with %d params, expected VSET with 2", sv.WireBase, len(sv.Params))
	}

	hp, ok := cat.Instrument("HP 3478A Multimeter")
	if !ok {
		t.Fatal("HP 3478A Multimeter missing from catalog")
	}
	wtd, ok := hp.Subcommand("Write to Display")
	if !ok {
		t.Fatal("Write to Display missing from multimeter")
	}
	if wtd.Grammar != GrammarTextAppend || wtd.WireBase != "D2" {
		t.Errorf("Write to Display = %s grammar with base %q, expected text/D2", wtd.Grammar, wtd.WireBase)
	}

	dcv, ok := hp.Subcommand("Measure DC Voltage")
	if !ok {
		t.Fatal("Measure DC Voltage missing from multimeter")
	}
	if !dcv.Measurement || dcv.Label != "DC Volts" {
		t.Errorf("Measure DC Voltage measurement=%v label=%q, expected true/DC Volts", dcv.Measurement, dcv.Label)
	}

	// Spot-check the verbatim wire vocabulary.
	for name, base := range map[string]string{
		"HOME Command":  "H0",
		"Autorange":     "RA",
		"Range -1":      "R-1",
		"Clear Display": "D1",
		"Digits 5.5":    "N5",
		"Trigger Fast":  "T5",
		"Autozero On":   "Z1",
		"Clear Status":  "C",
	} {
		sub, ok := hp.Subcommand(name)
		if !ok {
			t.Errorf("%s missing from multimeter", name)
			continue
		}
		if sub.WireBase != base {
			t.Errorf("%s wire base = %q, expected %q", name, sub.WireBase, base)
		}
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{
			name: "empty",
			toml: "",
			want: "no instruments",
		},
		{
			name: "unknown grammar",
			toml: `
[[instrument]]
name = "X"
  [[instrument.subcommand]]
  name = "a"
  base = "A"
  grammar = "morse"
`,
			want: "unknown grammar",
		},
		{
			name: "verbatim with params",
			toml: `
[[instrument]]
name = "X"
  [[instrument.subcommand]]
  name = "a"
  base = "A"
  grammar = "verbatim"
  params = ["oops"]
`,
			want: "verbatim",
		},
		{
			name: "text without param",
			toml: `
[[instrument]]
name = "X"
  [[instrument.subcommand]]
  name = "a"
  base = "A"
  grammar = "text"
`,
			want: "exactly one param",
		},
		{
			name: "measurement without label",
			toml: `
[[instrument]]
name = "X"
  [[instrument.subcommand]]
  name = "a"
  base = "A"
  grammar = "verbatim"
  measurement = true
`,
			want: "no label",
		},
		{
			name: "duplicate subcommand",
			toml: `
[[instrument]]
name = "X"
  [[instrument.subcommand]]
  name = "a"
  base = "A"
  grammar = "verbatim"
  [[instrument.subcommand]]
  name = "a"
  base = "B"
  grammar = "verbatim"
`,
			want: "duplicate subcommand",
		},
		{
			name: "missing wire base",
			toml: `
[[instrument]]
name = "X"
  [[instrument.subcommand]]
  name = "a"
  grammar = "verbatim"
`,
			want: "no wire base",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			if err == nil {
				t.Fatal("Parse() accepted an invalid catalog")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %q, expected it to mention %q", err, tt.want)
			}
		})
	}
}
