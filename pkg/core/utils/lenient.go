// Package utils holds lenient parsing helpers shared by the ingestors, the
// vocabulary loader and the renderers.
package utils

import (
	"encoding/json"
	"errors"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrUnparseable is returned by SmartParse when every strategy failed.
var ErrUnparseable = errors.New("input is not JSON, repairable JSON or Hjson")

// RepairJSON fixes common hand-edit and export damage: unquoted keys, single
// quotes, trailing commas, unclosed arrays, comments.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %w", err)
	}
	return repaired, nil
}

// ParseHJSON parses Hjson and returns the equivalent standard JSON.
func ParseHJSON(data string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(data), &result); err != nil {
		return "", fmt.Errorf("hjson parse failed: %w", err)
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal hjson result: %w", err)
	}
	return string(out), nil
}

// SmartParse decodes input into target trying, in order: standard JSON,
// JSON repair, Hjson. Surrounding code fences are stripped first. It returns
// the JSON text that finally decoded.
func SmartParse(input string, target interface{}) (string, error) {
	input = CleanMarkdown(input)

	if err := json.Unmarshal([]byte(input), target); err == nil {
		return input, nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), target); err == nil {
			return repaired, nil
		}
	}

	if converted, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(converted), target); err == nil {
			return converted, nil
		}
	}

	return "", ErrUnparseable
}
