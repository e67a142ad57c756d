// Package roster loads the list of known people from a comma-delimited
// file and answers point lookups by unique id.
package roster

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
)

// Column order of the roster file. The header line itself is not checked.
const (
	colFirstName = iota
	colLastName
	colIDNumber
	colAffiliation
	colDateOfBirth
	colUniqueID
	colCreatedAt
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads roster text. The first line is a header and is discarded.
// Every other non-blank line is split on "," into positional fields,
// each trimmed; missing trailing fields are "". Quoting is not supported,
// so a value containing a comma shifts the remaining columns.
func Parse(r io.Reader) ([]models.Person, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", common.ErrLoad, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: input is not valid UTF-8", common.ErrLoad)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("%w: empty roster", common.ErrLoad)
	}

	lines := strings.Split(text, "\n")
	people := make([]models.Person, 0, len(lines)-1)
	for _, line := range lines[1:] {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		people = append(people, parseLine(line))
	}
	return people, nil
}

func parseLine(line string) models.Person {
	values := strings.Split(line, ",")
	field := func(i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}

	return models.Person{
		FirstName:   field(colFirstName),
		LastName:    field(colLastName),
		IDNumber:    field(colIDNumber),
		Affiliation: field(colAffiliation),
		DateOfBirth: field(colDateOfBirth),
		UniqueID:    field(colUniqueID),
		CreatedAt:   field(colCreatedAt),
	}
}
