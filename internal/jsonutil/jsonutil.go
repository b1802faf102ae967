// Package jsonutil prints structs as coloured "Name: value" lines for terminal output.
package jsonutil

import (
	"bytes"
	"sort"
	"strings"

	"github.com/fatih/structs"
	"github.com/hokaccha/go-prettyjson"
)

var formatter *prettyjson.Formatter

func init() {
	formatter = prettyjson.NewFormatter()
	formatter.Indent = 0
	formatter.Newline = ""
}

// MarshalCompactPretty formats each field of struct v in a line, sorted by field name.
// Values are JSON encoded with color information. Names are aligned.
func MarshalCompactPretty(v any) ([]byte, error) {
	m := structs.Map(v)
	names := structs.Names(v)
	sort.Strings(names)
	width := 0
	for _, name := range names {
		if len(name) > width {
			width = len(name)
		}
	}
	var buf bytes.Buffer
	for _, name := range names {
		b, err := formatter.Marshal(m[name])
		if err != nil {
			return nil, err
		}
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(strings.Repeat(" ", width-len(name)))
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// MarshalCompactPrettyList formats each element of list with MarshalCompactPretty, separated with an empty line.
func MarshalCompactPrettyList[T any](list []T) ([]byte, error) {
	var buf bytes.Buffer
	for i, v := range list {
		if i > 0 {
			buf.WriteByte('\n')
		}
		b, err := MarshalCompactPretty(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}
