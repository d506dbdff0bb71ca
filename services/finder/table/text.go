// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package table

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AleutianAI/threeones/services/finder/catalogue"
	"github.com/AleutianAI/threeones/services/finder/position"
)

const headerPrefix = "# threeones table n="

// ErrMalformedText is returned by ReadText for unparseable input.
var ErrMalformedText = errors.New("malformed table text")

// WriteText writes the table in its logical text form, one entry per line:
//
//	(u1, u2, u3, zero, one): (value, data)
//
// where data is a witness tuple for terminal entries and a quoted label
// pair otherwise. The first line is a comment recording n.
func (t *Table) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s%d entries=%d\n", headerPrefix, t.n, len(t.entries)); err != nil {
		return err
	}
	var werr error
	t.Each(func(p position.Position, e Entry) bool {
		_, werr = fmt.Fprintf(bw, "%s: (%d, %s)\n", p, e.Value, e.Data())
		return werr == nil
	})
	if werr != nil {
		return werr
	}
	return bw.Flush()
}

// ReadText parses the output of WriteText.
func ReadText(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	n := -1
	rows := make(map[position.Position]Entry)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			if rest, ok := strings.CutPrefix(text, headerPrefix); ok {
				field, _, _ := strings.Cut(rest, " ")
				v, err := strconv.Atoi(field)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: bad header: %v", ErrMalformedText, line, err)
				}
				n = v
			}
			continue
		}
		p, e, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedText, line, err)
		}
		rows[p] = e
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedText)
	}
	return FromEntries(n, rows)
}

func parseLine(text string) (position.Position, Entry, error) {
	key, val, ok := strings.Cut(text, "):")
	if !ok {
		return position.Position{}, Entry{}, fmt.Errorf("no key separator in %q", text)
	}
	p, err := position.Parse(key + ")")
	if err != nil {
		return position.Position{}, Entry{}, err
	}

	val = strings.TrimSpace(val)
	val = strings.TrimPrefix(val, "(")
	val = strings.TrimSuffix(val, ")")
	head, data, ok := strings.Cut(val, ",")
	if !ok {
		return position.Position{}, Entry{}, fmt.Errorf("no data in %q", text)
	}
	value, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return position.Position{}, Entry{}, err
	}
	e := Entry{Value: value}
	data = strings.TrimSpace(data)
	if value == 0 {
		if e.Witness, err = position.ParseDelta(data); err != nil {
			return position.Position{}, Entry{}, err
		}
		return p, e, nil
	}
	labels := strings.Trim(data, "()")
	labels = strings.ReplaceAll(labels, "'", "")
	if e.Comparison, err = catalogue.ParseLabels(labels); err != nil {
		return position.Position{}, Entry{}, err
	}
	return p, e, nil
}
