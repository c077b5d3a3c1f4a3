package dictionary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	apperrors "canmlio/internal/errors"
)

// yamlDictionary is the YAML dictionary file schema. It mirrors the
// DBC subset one-to-one so either format can feed the same registry.
type yamlDictionary struct {
	Version  int           `yaml:"version"`
	Messages []yamlMessage `yaml:"messages"`
}

type yamlMessage struct {
	ID      uint32       `yaml:"id"`
	Name    string       `yaml:"name"`
	Length  int          `yaml:"length"`
	Signals []yamlSignal `yaml:"signals"`
}

type yamlSignal struct {
	Name      string                 `yaml:"name"`
	Start     uint                   `yaml:"start"`
	Length    uint                   `yaml:"length"`
	ByteOrder string                 `yaml:"byte_order"`
	Signed    bool                   `yaml:"signed"`
	Scale     *float64               `yaml:"scale"`
	Offset    float64                `yaml:"offset"`
	Min       *float64               `yaml:"min"`
	Max       *float64               `yaml:"max"`
	Unit      string                 `yaml:"unit"`
	DType     string                 `yaml:"dtype"`
	Choices   []yamlChoice           `yaml:"choices"`
	Attrs     map[string]interface{} `yaml:"attributes"`
}

type yamlChoice struct {
	Raw   int64  `yaml:"raw"`
	Label string `yaml:"label"`
}

// parseYAML reads a YAML dictionary file into message definitions.
func parseYAML(path string) ([]*MessageDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewFormatError(fmt.Sprintf("cannot read dictionary %s", path), err)
	}

	var doc yamlDictionary
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, apperrors.NewFormatError(fmt.Sprintf("invalid YAML dictionary %s", path), err)
	}
	if len(doc.Messages) == 0 {
		return nil, apperrors.NewFormatError(fmt.Sprintf("no messages defined in %s", path), nil)
	}

	messages := make([]*MessageDef, 0, len(doc.Messages))
	for _, ym := range doc.Messages {
		if ym.Name == "" {
			return nil, apperrors.NewFormatError(fmt.Sprintf("message 0x%X in %s has no name", ym.ID, path), nil)
		}
		msg := &MessageDef{ID: ym.ID, Name: ym.Name, Length: ym.Length}
		for _, ys := range ym.Signals {
			sig, err := ys.toSignalDef(ym.Name)
			if err != nil {
				return nil, apperrors.NewFormatError(fmt.Sprintf("invalid signal in %s", path), err)
			}
			msg.Signals = append(msg.Signals, sig)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (ys yamlSignal) toSignalDef(msgName string) (*SignalDef, error) {
	if ys.Name == "" {
		return nil, fmt.Errorf("signal in message %s has no name", msgName)
	}
	if ys.Length == 0 {
		return nil, fmt.Errorf("signal %s has no bit length", ys.Name)
	}

	scale := 1.0
	if ys.Scale != nil {
		scale = *ys.Scale
	}

	sig := &SignalDef{
		Name:      ys.Name,
		Message:   msgName,
		StartBit:  ys.Start,
		Length:    ys.Length,
		Signed:    ys.Signed,
		Scale:     scale,
		Offset:    ys.Offset,
		Min:       ys.Min,
		Max:       ys.Max,
		Unit:      ys.Unit,
		DTypeHint: ys.DType,
	}

	switch ys.ByteOrder {
	case "", "little_endian":
		sig.ByteOrder = LittleEndian
	case "big_endian":
		sig.ByteOrder = BigEndian
	default:
		return nil, fmt.Errorf("signal %s: unknown byte order %q", ys.Name, ys.ByteOrder)
	}

	for _, c := range ys.Choices {
		sig.Choices = append(sig.Choices, Choice{Raw: c.Raw, Label: c.Label})
	}
	if len(ys.Attrs) > 0 {
		sig.Attributes = make(map[string]interface{}, len(ys.Attrs))
		for k, v := range ys.Attrs {
			sig.Attributes[k] = v
		}
	}
	return sig, nil
}
