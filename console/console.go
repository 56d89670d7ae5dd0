// Package console is the operator-facing surface: a line-oriented
// command loop plus the event sink that renders debug logs, received
// lines, measurement samples and connection state changes.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/labshed/gpibctl/catalog"
	"github.com/labshed/gpibctl/config"
	"github.com/labshed/gpibctl/encoder"
	"github.com/labshed/gpibctl/export"
	"github.com/labshed/gpibctl/session"
	"github.com/labshed/gpibctl/transport"
)

const defaultBaudRate = 115200

// Console runs the interactive loop and implements session.Sink.
type Console struct {
	cat  *catalog.Catalog
	ctrl *session.Controller
	log  *logrus.Logger
	out  io.Writer

	// current selection, mirrors the original UI's combo boxes and
	// entry fields
	instrument string
	subcommand string
	params     []string
	port       string
	baud       int
}

// New builds a console over the given catalog, reading commands from in
// and writing to out.
func New(cat *catalog.Catalog, out io.Writer) *Console {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	c := &Console{
		cat:  cat,
		log:  log,
		out:  out,
		baud: defaultBaudRate,
	}
	c.ctrl = session.New(cat, c, transport.Open)
	return c
}

// Sink implementation. Calls arrive in order from the controller's
// dispatch goroutine.

func (c *Console) LogDebug(text string) {
	c.log.Debug(text)
}

func (c *Console) LogReceived(text string) {
	c.log.WithField("dir", "rx").Info(text)
}

func (c *Console) OnMeasurement(s session.Sample) {
	c.log.WithFields(logrus.Fields{
		"t":     fmt.Sprintf("%.3f", s.Elapsed),
		"value": s.Value,
	}).Info("measurement")
}

func (c *Console) OnConnectionState(st session.State) {
	c.log.Infof("serial status: %s", strings.ToUpper(st.String()))
}

// Run reads commands from in until EOF or "quit".
func (c *Console) Run(in io.Reader) error {
	defer c.ctrl.Close()

	fmt.Fprintln(c.out, "gpibctl - type 'help' for commands")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		verb, rest := splitVerb(line)
		if verb == "quit" || verb == "exit" {
			break
		}
		if err := c.handle(verb, rest); err != nil {
			c.log.Error(err.Error())
		}
	}
	return scanner.Err()
}

func splitVerb(line string) (string, string) {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i], strings.TrimSpace(line[i+1:])
	}
	return line, ""
}

func (c *Console) handle(verb, rest string) error {
	switch verb {
	case "help":
		c.printHelp()
	case "ports":
		return c.listPorts()
	case "connect":
		return c.connect(rest)
	case "disconnect":
		return c.ctrl.Disconnect()
	case "status":
		fmt.Fprintf(c.out, "serial status: %s\n", strings.ToUpper(c.ctrl.State().String()))
	case "instruments":
		c.printInstruments()
	case "use":
		return c.use(rest)
	case "param":
		return c.setParam(rest)
	case "send":
		return c.send()
	case "raw":
		return c.ctrl.SendRaw(rest)
	case "clear":
		c.ctrl.ClearSamples()
	case "samples":
		c.printSamples()
	case "export":
		return c.export(rest)
	case "save":
		return c.saveConfig(rest)
	case "load":
		return c.loadConfig(rest)
	default:
		return fmt.Errorf("unknown command %q (try 'help')", verb)
	}
	return nil
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `commands:
  ports                    list serial devices
  connect <port> [baud]    open the serial connection
  disconnect               close the serial connection
  status                   show connection state
  instruments              list instruments and subcommands
  use <inst#> <sub#>       select instrument and subcommand
  param <slot#> [value]    set a parameter value (empty resets the slot)
  send                     encode and send the selected command
  raw <text>               send a raw serial line
  clear                    clear measurement data
  samples                  print collected measurement samples
  export <file>            write measurement samples as CSV
  save [file]              save session settings
  load [file]              load session settings
  quit                     exit
`)
}

func (c *Console) listPorts() error {
	ports, err := transport.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(c.out, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.VID != "" {
			fmt.Fprintf(c.out, "%s (USB VID=%s PID=%s SN=%s)\n", p.Name, p.VID, p.PID, p.SerialNumber)
		} else {
			fmt.Fprintln(c.out, p.Name)
		}
	}
	return nil
}

func (c *Console) connect(rest string) error {
	fields := strings.Fields(rest)
	if len(fields) >= 1 {
		c.port = fields[0]
	}
	if len(fields) >= 2 {
		baud, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid baud rate %q (must be an integer)", fields[1])
		}
		c.baud = baud
	}
	return c.ctrl.Connect(transport.Config{Port: c.port, BaudRate: c.baud})
}

func (c *Console) printInstruments() {
	for i, ins := range c.cat.Instruments {
		fmt.Fprintf(c.out, "%d: %s\n", i, ins.Name)
		for j, sub := range ins.Subcommands {
			marker := ""
			if sub.Measurement {
				marker = " [measurement]"
			}
			fmt.Fprintf(c.out, "   %d: %s%s\n", j, sub.Name, marker)
		}
	}
}

func (c *Console) use(rest string) error {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return fmt.Errorf("usage: use <inst#> <sub#>")
	}
	i, err := strconv.Atoi(fields[0])
	if err != nil || i < 0 || i >= len(c.cat.Instruments) {
		return fmt.Errorf("invalid instrument index %q", fields[0])
	}
	ins := &c.cat.Instruments[i]
	j, err := strconv.Atoi(fields[1])
	if err != nil || j < 0 || j >= len(ins.Subcommands) {
		return fmt.Errorf("invalid subcommand index %q", fields[1])
	}
	sub := &ins.Subcommands[j]

	c.instrument = ins.Name
	c.subcommand = sub.Name
	// Entry fields start out showing their placeholder labels.
	c.params = append([]string(nil), sub.Params...)

	fmt.Fprintf(c.out, "selected %s / %s\n", ins.Name, sub.Name)
	for k, label := range sub.Params {
		fmt.Fprintf(c.out, "   param %d: %s\n", k, label)
	}
	return nil
}

func (c *Console) setParam(rest string) error {
	if c.subcommand == "" {
		return fmt.Errorf("select an instrument and subcommand first (see 'use')")
	}
	slot, value := splitVerb(rest)
	k, err := strconv.Atoi(slot)
	if err != nil || k < 0 || k >= len(c.params) {
		return fmt.Errorf("invalid parameter slot %q", slot)
	}
	if value == "" {
		// Reset the slot to its placeholder, i.e. unset.
		ins, _ := c.cat.Instrument(c.instrument)
		sub, _ := ins.Subcommand(c.subcommand)
		value = sub.Params[k]
	}
	c.params[k] = value
	return nil
}

func (c *Console) send() error {
	return c.ctrl.SendCommand(encoder.Request{
		Instrument: c.instrument,
		Subcommand: c.subcommand,
		Values:     c.params,
	})
}

func (c *Console) printSamples() {
	samples := c.ctrl.Samples()
	if len(samples) == 0 {
		fmt.Fprintln(c.out, "no measurement data")
		return
	}
	for _, s := range samples {
		fmt.Fprintf(c.out, "%.3f\t%g\n", s.Elapsed, s.Value)
	}
}

func (c *Console) export(rest string) error {
	if rest == "" {
		return fmt.Errorf("usage: export <file>")
	}
	samples := c.ctrl.Samples()
	if err := export.SaveCSV(rest, c.ctrl.MeasurementLabel(), samples); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "wrote %d samples to %s\n", len(samples), rest)
	return nil
}

func (c *Console) configPath(rest string) (string, error) {
	if rest != "" {
		return rest, nil
	}
	return config.DefaultPath()
}

func (c *Console) saveConfig(rest string) error {
	path, err := c.configPath(rest)
	if err != nil {
		return err
	}
	s := config.Session{
		Instrument: c.instrument,
		Subcommand: c.subcommand,
		Params:     c.params,
		Port:       c.port,
		BaudRate:   c.baud,
	}
	if err := config.Save(path, s); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "configuration saved to %s\n", path)
	return nil
}

func (c *Console) loadConfig(rest string) error {
	path, err := c.configPath(rest)
	if err != nil {
		return err
	}
	s, err := config.Load(path, c.cat)
	if err != nil {
		return err
	}
	c.instrument = s.Instrument
	c.subcommand = s.Subcommand
	c.params = append([]string(nil), s.Params...)
	if s.Port != "" {
		c.port = s.Port
	}
	if s.BaudRate > 0 {
		c.baud = s.BaudRate
	}
	fmt.Fprintf(c.out, "configuration loaded from %s\n", path)
	return nil
}
