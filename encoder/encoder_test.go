package encoder

import (
	"errors"
	"testing"

	"github.com/labshed/gpibctl/catalog"
)

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("failed to load default catalog: %v", err)
	}
	return cat
}

func TestEncodeWireStrings(t *testing.T) {
	cat := defaultCatalog(t)

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "display text",
			req: Request{
				Instrument: "HP 3478A Multimeter",
				Subcommand: "Write to Display",
				Values:     []string{"HELLO"},
			},
			want: "D2HELLO",
		},
		{
			name: "display text is upper-cased",
			req: Request{
				Instrument: "HP 3478A Multimeter",
				Subcommand: "Write to Display (Static)",
				Values:     []string{"hello"},
			},
			want: "D3HELLO",
		},
		{
			name: "generic with params",
			req: Request{
				Instrument: "Power Supply",
				Subcommand: "Set Voltage",
				Values:     []string{"5.0", "1"},
			},
			want: "PS:VSET:5.0,1",
		},
		{
			name: "generic skips empty params",
			req: Request{
				Instrument: "Power Supply",
				Subcommand: "Set Voltage",
				Values:     []string{"5.0", ""},
			},
			want: "PS:VSET:5.0",
		},
		{
			name: "generic without params",
			req: Request{
				Instrument: "Power Supply",
				Subcommand: "Measure Output",
			},
			want: "PS:MEAS",
		},
		{
			name: "load instrument prefix",
			req: Request{
				Instrument: "Chroma DC Load",
				Subcommand: "Set Current",
				Values:     []string{"2.5", "CC"},
			},
			want: "LOAD:CURR:2.5,CC",
		},
		{
			name: "verbatim code",
			req: Request{
				Instrument: "HP 3478A Multimeter",
				Subcommand: "Measure DC Voltage",
			},
			want: "H1",
		},
		{
			name: "verbatim negative range",
			req: Request{
				Instrument: "HP 3478A Multimeter",
				Subcommand: "Range -2",
			},
			want: "R-2",
		},
		{
			name: "hex mask",
			req: Request{
				Instrument: "HP 3478A Multimeter",
				Subcommand: "SRQ Mask",
				Values:     []string{"2A"},
			},
			want: "M2A",
		},
		{
			name: "hex mask unset sends bare code",
			req: Request{
				Instrument: "HP 3478A Multimeter",
				Subcommand: "SRQ Mask",
				Values:     []string{"Mask (hex)"},
			},
			want: "M",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := Encode(cat, tt.req)
			if err != nil {
				t.Fatalf("Encode() returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Encode() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestEncodeDeterminism(t *testing.T) {
	cat := defaultCatalog(t)
	req := Request{
		Instrument: "Power Supply",
		Subcommand: "Set Voltage",
		Values:     []string{"12.0", "2"},
	}

	first, _, err := Encode(cat, req)
	if err != nil {
		t.Fatalf("Encode() returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, _, err := Encode(cat, req)
		if err != nil {
			t.Fatalf("Encode() returned error on repeat %d: %v", i, err)
		}
		if got != first {
			t.Fatalf("Encode() not deterministic: %q != %q", got, first)
		}
	}
}

// A slot whose value equals its assigned placeholder label is treated as
// empty, compared position by position.
func TestPlaceholderFiltering(t *testing.T) {
	cat := defaultCatalog(t)

	// Both slots still show their labels: no params sent.
	got, _, err := Encode(cat, Request{
		Instrument: "Power Supply",
		Subcommand: "Set Voltage",
		Values:     []string{"Voltage (V)", "Channel"},
	})
	if err != nil {
		t.Fatalf("Encode() returned error: %v", err)
	}
	if got != "PS:VSET" {
		t.Errorf("Encode() = %q, expected placeholders filtered to %q", got, "PS:VSET")
	}

	// The comparison is positional: slot 0 holding slot 1's label is a
	// real value, not a placeholder.
	got, _, err = Encode(cat, Request{
		Instrument: "Power Supply",
		Subcommand: "Set Voltage",
		Values:     []string{"Channel", "1"},
	})
	if err != nil {
		t.Fatalf("Encode() returned error: %v", err)
	}
	if got != "PS:VSET:Channel,1" {
		t.Errorf("Encode() = %q, expected %q", got, "PS:VSET:Channel,1")
	}

	// Explicit placeholder values override the catalog labels.
	got, _, err = Encode(cat, Request{
		Instrument:   "Power Supply",
		Subcommand:   "Set Voltage",
		Values:       []string{"enter volts", "1"},
		Placeholders: []string{"enter volts", "enter channel"},
	})
	if err != nil {
		t.Fatalf("Encode() returned error: %v", err)
	}
	if got != "PS:VSET:1" {
		t.Errorf("Encode() = %q, expected %q", got, "PS:VSET:1")
	}
}

func TestEncodeValidation(t *testing.T) {
	cat := defaultCatalog(t)

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "no instrument",
			req:     Request{Subcommand: "Set Voltage"},
			wantErr: ErrNoInstrument,
		},
		{
			name:    "no subcommand",
			req:     Request{Instrument: "Power Supply"},
			wantErr: ErrNoSubcommand,
		},
		{
			name: "empty display text",
			req: Request{
				Instrument: "HP 3478A Multimeter",
				Subcommand: "Write to Display",
				Values:     []string{""},
			},
			wantErr: ErrTextRequired,
		},
		{
			name: "display text still placeholder",
			req: Request{
				Instrument: "HP 3478A Multimeter",
				Subcommand: "Write to Display",
				Values:     []string{"Enter text in all caps here"},
			},
			wantErr: ErrTextRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Encode(cat, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Encode() error = %v, expected %v", err, tt.wantErr)
			}
		})
	}

	if _, _, err := Encode(cat, Request{Instrument: "Oscilloscope", Subcommand: "x"}); err == nil {
		t.Error("Encode() accepted an unknown instrument")
	}
	if _, _, err := Encode(cat, Request{Instrument: "Power Supply", Subcommand: "Self Destruct"}); err == nil {
		t.Error("Encode() accepted an unknown subcommand")
	}
	if _, _, err := Encode(cat, Request{
		Instrument: "HP 3478A Multimeter",
		Subcommand: "SRQ Mask",
		Values:     []string{"zz"},
	}); err == nil {
		t.Error("Encode() accepted a non-hex mask")
	}
}
