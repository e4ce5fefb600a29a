// Package scpi drives SCPI oscilloscopes over a line-oriented socket.
// Each supported instrument family gets its own typed driver selected
// at discovery time by matching the *IDN? response against known model
// signatures.
package scpi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/SeanMcGrath/ScopeOut/internal/domain"
	"github.com/SeanMcGrath/ScopeOut/internal/ports"
)

// commandSet holds the family-specific SCPI spellings. Families differ
// only in a handful of commands; everything else is shared by the
// scope base type.
type commandSet struct {
	autoSet         string
	triggerStatus   string
	dataSourceQuery string
	dataSourceSet   string
	eventStatus     string
	preamble        string
	curve           string
}

var tekCommands = commandSet{
	autoSet:         "AUTOS EXEC",
	triggerStatus:   "TRIG:STATE?",
	dataSourceQuery: "DAT:SOU?",
	dataSourceSet:   "DAT:SOU",
	eventStatus:     "*ESR?",
	preamble:        "WFMP?",
	curve:           "CURV?",
}

var gwinstekCommands = commandSet{
	autoSet:         "AUTOS EXEC",
	triggerStatus:   ":TRIG:STATE?",
	dataSourceQuery: "DAT:SOU?",
	dataSourceSet:   "DAT:SOU",
	eventStatus:     "*ESR?",
	preamble:        "WFMP?",
	curve:           "CURV?",
}

// Model signatures used to classify *IDN? responses.
var (
	tds2000Signature = regexp.MustCompile(`TDS 2\d*B`)
	gds1000Signature = regexp.MustCompile(`GDS-1\d*A`)
	gds2000Signature = regexp.MustCompile(`GDS-2\d*A`)
)

// TDS2000B is a Tektronix TDS 2000B-series four-channel scope.
type TDS2000B struct{ scope }

// GDS1000A is a GW Instek GDS-1000A-series two-channel scope.
type GDS1000A struct{ scope }

// GDS2000A is a GW Instek GDS-2000A-series four-channel scope.
type GDS2000A struct{ scope }

const idnReadAttempts = 100

// Identify issues *IDN? and reads until a well-formed four-field
// identification arrives. Some scopes leave stale output in their
// buffer, so a bounded number of re-reads is allowed.
func Identify(conn ports.Conn) (string, error) {
	if err := conn.WriteLine("*IDN?"); err != nil {
		return "", err
	}
	idn, err := conn.ReadLine()
	if err != nil {
		return "", err
	}
	for attempts := 0; len(strings.Split(idn, ",")) != 4; attempts++ {
		if attempts >= idnReadAttempts {
			return "", fmt.Errorf("failed to read identification from instrument")
		}
		if idn, err = conn.ReadLine(); err != nil {
			return "", err
		}
	}
	return idn, nil
}

// Classify instantiates the driver matching the identification string.
// Unrecognised models are an error; the caller drops the instrument
// and keeps discovering.
func Classify(conn ports.Conn, idn string) (ports.Instrument, error) {
	parts := strings.Split(idn, ",")
	if len(parts) < 4 {
		return nil, fmt.Errorf("malformed identification %q", idn)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	base := scope{
		conn:     conn,
		vendor:   parts[0],
		model:    parts[1],
		serial:   parts[2],
		firmware: parts[3],
	}

	switch {
	case tds2000Signature.MatchString(base.model):
		base.cmds, base.channels = tekCommands, 4
		return &TDS2000B{base}, nil
	case gds1000Signature.MatchString(base.model):
		base.cmds, base.channels = gwinstekCommands, 2
		return &GDS1000A{base}, nil
	case gds2000Signature.MatchString(base.model):
		base.cmds, base.channels = gwinstekCommands, 4
		return &GDS2000A{base}, nil
	default:
		return nil, fmt.Errorf("unsupported instrument model %q", base.model)
	}
}

// scope implements the shared capability surface over a command set.
type scope struct {
	conn     ports.Conn
	cmds     commandSet
	channels int

	vendor   string
	model    string
	serial   string
	firmware string
}

func (s *scope) ID() string {
	return fmt.Sprintf("%s %s Oscilloscope. Serial Number: %s.", s.vendor, s.model, s.serial)
}

func (s *scope) Write(cmd string) error {
	return s.conn.WriteLine(cmd)
}

func (s *scope) Query(cmd string) (string, error) {
	if err := s.conn.WriteLine(cmd); err != nil {
		return "", err
	}
	return s.conn.ReadLine()
}

func (s *scope) ChannelCount() int { return s.channels }

func (s *scope) TriggerStatus() (ports.TriggerState, error) {
	resp, err := s.Query(s.cmds.triggerStatus)
	if err != nil {
		return "", err
	}
	return ports.TriggerState(strings.ToUpper(strings.TrimSpace(resp))), nil
}

func (s *scope) SetDataChannel(channel string) (bool, error) {
	if n, err := strconv.Atoi(channel); err == nil {
		if n < 1 || n > s.channels {
			return false, fmt.Errorf("invalid data channel %q", channel)
		}
		return s.setParam(s.cmds.dataSourceSet + " CH" + channel)
	}
	if strings.EqualFold(channel, domain.MathChannel) {
		return s.setParam(s.cmds.dataSourceSet + " MATH")
	}
	return false, fmt.Errorf("invalid data channel %q", channel)
}

func (s *scope) AutoSet() error {
	ok, err := s.setParam(s.cmds.autoSet)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("autoset rejected by instrument")
	}
	return nil
}

func (s *scope) Close() error {
	return s.conn.Close()
}

// setParam writes a setting command and verifies it through the event
// status register readback.
func (s *scope) setParam(cmd string) (bool, error) {
	if err := s.Write(cmd); err != nil {
		return false, err
	}
	resp, err := s.Query(s.cmds.eventStatus)
	if err != nil {
		return false, err
	}
	code, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil {
		return false, fmt.Errorf("event status readback %q: %w", resp, err)
	}
	return code == 0, nil
}
