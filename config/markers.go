package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"harmony-bridge/tokenizer"
)

// markerSpec is one entry of a markers.yaml file. Kind names mirror the
// token kinds: start, channel, recipient, content_type, message, end.
type markerSpec struct {
	Kind       string `yaml:"kind"`
	Prefix     string `yaml:"prefix"`
	Suffix     string `yaml:"suffix"`
	TakesValue bool   `yaml:"takes_value"`
}

type markersFile struct {
	Markers []markerSpec `yaml:"markers"`
}

// LoadMarkerTable reads a delimiter vocabulary from a YAML file, e.g.
//
//	markers:
//	  - {kind: channel, prefix: "<channel:", suffix: ">"}
//	  - {kind: recipient, prefix: "<to:", suffix: ">"}
//	  - {kind: message, prefix: "<message>"}
//	  - {kind: end, prefix: "<end>"}
func LoadMarkerTable(path string) (*tokenizer.MarkerTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markers file: %w", err)
	}

	var file markersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse markers file %s: %w", path, err)
	}
	if len(file.Markers) == 0 {
		return nil, fmt.Errorf("markers file %s defines no markers", path)
	}

	markers := make([]tokenizer.Marker, 0, len(file.Markers))
	for i, spec := range file.Markers {
		kind, err := parseMarkerKind(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("markers file %s entry %d: %w", path, i, err)
		}
		if spec.Prefix == "" {
			return nil, fmt.Errorf("markers file %s entry %d: prefix must not be empty", path, i)
		}
		markers = append(markers, tokenizer.Marker{
			Kind:       kind,
			Prefix:     spec.Prefix,
			Suffix:     spec.Suffix,
			TakesValue: spec.TakesValue,
		})
	}
	return tokenizer.NewMarkerTable(markers...), nil
}

func parseMarkerKind(name string) (tokenizer.Kind, error) {
	switch name {
	case "start":
		return tokenizer.KindStart, nil
	case "channel":
		return tokenizer.KindChannel, nil
	case "recipient":
		return tokenizer.KindRecipient, nil
	case "content_type":
		return tokenizer.KindContentType, nil
	case "message":
		return tokenizer.KindMessage, nil
	case "end":
		return tokenizer.KindEnd, nil
	default:
		return 0, fmt.Errorf("unknown marker kind %q", name)
	}
}
