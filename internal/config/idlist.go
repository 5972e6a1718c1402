// ABOUTME: IDList accepts user IDs written as numbers or strings
// ABOUTME: Telegram IDs are integers in most configs, Matrix IDs are strings

package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// IDList is a list of user identities. Numeric entries are stored in decimal.
type IDList []string

// ParseIDList splits a comma-separated list, dropping blanks.
func ParseIDList(s string) IDList {
	var ids IDList
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

// UnmarshalTOML implements toml.Unmarshaler.
func (l *IDList) UnmarshalTOML(v any) error {
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("expected an array of user IDs, got %T", v)
	}
	ids := make(IDList, 0, len(items))
	for _, item := range items {
		id, err := idString(item)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	*l = ids
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *IDList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a list of user IDs", node.Line)
	}
	ids := make(IDList, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: user ID must be a scalar", item.Line)
		}
		ids = append(ids, strings.TrimSpace(item.Value))
	}
	*l = ids
	return nil
}

func idString(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	default:
		return "", fmt.Errorf("user ID must be a number or string, got %T", v)
	}
}
