package dictionary

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	apperrors "canmlio/internal/errors"
)

// The DBC subset understood by parseDBC:
//
//	BO_ <id> <MessageName>: <length> <sender>
//	 SG_ <SignalName> : <start>|<length>@<order><sign> (<scale>,<offset>) [<min>|<max>] "<unit>" <receivers>
//	VAL_ <id> <SignalName> <raw> "<label>" ... ;
//	BA_ "<AttrName>" SG_ <id> <SignalName> <value>;
//
// Multiplexer indicators on SG_ lines are accepted and ignored.
// CM_, BU_, BS_, NS_ and version records are skipped.
var (
	messageRe = regexp.MustCompile(`^BO_\s+(\d+)\s+(\w+)\s*:\s*(\d+)\s+(\w+)`)
	signalRe  = regexp.MustCompile(`^SG_\s+(\w+)\s*(?:(m\d+|M)\s*)?:\s*(\d+)\|(\d+)@([01])([+-])\s*\(([^,]+),([^)]+)\)\s*\[([^|]*)\|([^\]]*)\]\s*"([^"]*)"`)
	valueRe   = regexp.MustCompile(`^VAL_\s+(\d+)\s+(\w+)\s+(.*);`)
	choiceRe  = regexp.MustCompile(`(-?\d+)\s+"([^"]*)"`)
	attrRe    = regexp.MustCompile(`^BA_\s+"([^"]+)"\s+SG_\s+(\d+)\s+(\w+)\s+(.*);`)
)

// parseDBC reads a DBC dictionary file into message definitions.
func parseDBC(path string) ([]*MessageDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewFormatError(fmt.Sprintf("cannot open DBC file %s", path), err)
	}
	defer f.Close()

	var (
		messages []*MessageDef
		byID     = make(map[uint32]*MessageDef)
		current  *MessageDef
		lineNo   int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "BO_ "):
			m := messageRe.FindStringSubmatch(line)
			if m == nil {
				return nil, formatErr(path, lineNo, "malformed BO_ record", nil)
			}
			id, err := strconv.ParseUint(m[1], 10, 32)
			if err != nil {
				return nil, formatErr(path, lineNo, "invalid message id", err)
			}
			length, _ := strconv.Atoi(m[3])
			current = &MessageDef{ID: uint32(id), Name: m[2], Length: length}
			messages = append(messages, current)
			byID[current.ID] = current

		case strings.HasPrefix(line, "SG_ "):
			if current == nil {
				return nil, formatErr(path, lineNo, "SG_ record outside a BO_ block", nil)
			}
			sig, err := parseSignalLine(line, current.Name)
			if err != nil {
				return nil, formatErr(path, lineNo, "malformed SG_ record", err)
			}
			current.Signals = append(current.Signals, sig)

		case strings.HasPrefix(line, "VAL_ "):
			if err := applyChoices(line, byID); err != nil {
				return nil, formatErr(path, lineNo, "malformed VAL_ record", err)
			}
			current = nil

		case strings.HasPrefix(line, "BA_ "):
			// Attribute records for non-signal objects are skipped.
			if m := attrRe.FindStringSubmatch(line); m != nil {
				if err := applyAttribute(m, byID); err != nil {
					return nil, formatErr(path, lineNo, "malformed BA_ record", err)
				}
			}
			current = nil

		default:
			// Any other top-level record ends the current BO_ block.
			if line != "" {
				current = nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.NewFormatError(fmt.Sprintf("failed reading DBC file %s", path), err)
	}

	if len(messages) == 0 {
		return nil, apperrors.NewFormatError(fmt.Sprintf("no BO_ records found in %s", path), nil)
	}
	return messages, nil
}

// parseSignalLine parses one SG_ record belonging to message msgName.
func parseSignalLine(line, msgName string) (*SignalDef, error) {
	m := signalRe.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("does not match SG_ grammar: %q", line)
	}

	start, err := strconv.ParseUint(m[3], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid start bit: %w", err)
	}
	length, err := strconv.ParseUint(m[4], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid bit length: %w", err)
	}
	scale, err := strconv.ParseFloat(strings.TrimSpace(m[7]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid scale: %w", err)
	}
	offset, err := strconv.ParseFloat(strings.TrimSpace(m[8]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid offset: %w", err)
	}

	sig := &SignalDef{
		Name:     m[1],
		Message:  msgName,
		StartBit: uint(start),
		Length:   uint(length),
		Signed:   m[6] == "-",
		Scale:    scale,
		Offset:   offset,
		Unit:     m[11],
	}
	if m[5] == "0" {
		sig.ByteOrder = BigEndian
	}
	if min, err := strconv.ParseFloat(strings.TrimSpace(m[9]), 64); err == nil {
		sig.Min = &min
	}
	if max, err := strconv.ParseFloat(strings.TrimSpace(m[10]), 64); err == nil {
		sig.Max = &max
	}
	return sig, nil
}

// applyChoices attaches a VAL_ enumeration to its signal. Choices keep
// the order they are declared in.
func applyChoices(line string, byID map[uint32]*MessageDef) error {
	m := valueRe.FindStringSubmatch(line)
	if m == nil {
		return fmt.Errorf("does not match VAL_ grammar: %q", line)
	}
	id, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}

	sig := findSignal(byID, uint32(id), m[2])
	if sig == nil {
		return fmt.Errorf("VAL_ references unknown signal %s in message %d", m[2], id)
	}

	for _, pair := range choiceRe.FindAllStringSubmatch(m[3], -1) {
		raw, err := strconv.ParseInt(pair[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid choice value: %w", err)
		}
		sig.Choices = append(sig.Choices, Choice{Raw: raw, Label: pair[2]})
	}
	return nil
}

// applyAttribute attaches a BA_ signal attribute value.
func applyAttribute(m []string, byID map[uint32]*MessageDef) error {
	id, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}

	sig := findSignal(byID, uint32(id), m[3])
	if sig == nil {
		return fmt.Errorf("BA_ references unknown signal %s in message %d", m[3], id)
	}

	if sig.Attributes == nil {
		sig.Attributes = make(map[string]interface{})
	}
	raw := strings.TrimSpace(m[4])
	if unquoted := strings.Trim(raw, `"`); unquoted != raw {
		sig.Attributes[m[1]] = unquoted
	} else if num, err := strconv.ParseFloat(raw, 64); err == nil {
		sig.Attributes[m[1]] = num
	} else {
		sig.Attributes[m[1]] = raw
	}
	return nil
}

func findSignal(byID map[uint32]*MessageDef, id uint32, name string) *SignalDef {
	msg, ok := byID[id]
	if !ok {
		return nil
	}
	for _, sig := range msg.Signals {
		if sig.Name == name {
			return sig
		}
	}
	return nil
}

func formatErr(path string, line int, message string, cause error) error {
	return apperrors.NewFormatError(fmt.Sprintf("%s:%d: %s", path, line, message), cause)
}
