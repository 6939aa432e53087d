package layerconf

import (
	"errors"
	"strings"
)

type assignment struct {
	appends bool
	value   span
}

var operators = []string{"??=", "?=", ":=", "+=", "=+", ".=", "=.", "="}

// scan finds every BBLAYERS assignment. Comment lines and continuation lines
// of other statements are skipped.
func scan(data []byte) ([]assignment, error) {
	var out []assignment
	i := 0
	for i < len(data) {
		j := skipBlank(data, i)
		if j < len(data) && data[j] == '#' {
			i = endOfLine(data, j)
			continue
		}
		if name, ok := matchVariable(data, j); ok {
			a, next, err := parseAssignment(data, name)
			if err != nil {
				return nil, err
			}
			if a != nil {
				out = append(out, *a)
				i = endOfLine(data, next)
				continue
			}
		}
		i = endOfStatement(data, j)
	}
	return out, nil
}

func matchVariable(data []byte, at int) (int, bool) {
	if !strings.HasPrefix(string(data[at:min(len(data), at+len(Variable)+1)]), Variable) {
		return 0, false
	}
	next := at + len(Variable)
	if next >= len(data) {
		return 0, false
	}
	switch data[next] {
	case ' ', '\t', '=', '?', ':', '+', '.':
		return next, true
	}
	return 0, false
}

func parseAssignment(data []byte, at int) (*assignment, int, error) {
	k := skipBlank(data, at)
	op := ""
	for _, candidate := range operators {
		if strings.HasPrefix(string(data[k:min(len(data), k+3)]), candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		return nil, at, nil
	}
	k = skipBlank(data, k+len(op))
	if k >= len(data) || (data[k] != '"' && data[k] != '\'') {
		return nil, at, nil
	}
	quote := data[k]
	start := k + 1
	end := -1
	for p := start; p < len(data); p++ {
		if data[p] == '\\' {
			p++
			continue
		}
		if data[p] == quote {
			end = p
			break
		}
		if data[p] == '\n' && (p == 0 || data[p-1] != '\\') {
			break
		}
	}
	if end < 0 {
		return nil, at, errors.New("unterminated " + Variable + " value")
	}
	value := string(data[start:end])
	s := span{
		found:     true,
		start:     start,
		end:       end,
		quote:     quote,
		multiline: strings.Contains(value, "\n"),
		indent:    entryIndent(value),
	}
	return &assignment{appends: op == "+=" || op == "=+" || op == ".=" || op == "=.", value: s}, end + 1, nil
}

func entryIndent(value string) string {
	for _, line := range strings.Split(value, "\n")[1:] {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || trimmed == "\\" {
			continue
		}
		return line[:len(line)-len(trimmed)]
	}
	return ""
}

func skipBlank(data []byte, i int) int {
	for i < len(data) && (data[i] == ' ' || data[i] == '\t') {
		i++
	}
	return i
}

func endOfLine(data []byte, i int) int {
	for i < len(data) && data[i] != '\n' {
		i++
	}
	if i < len(data) {
		i++
	}
	return i
}

// endOfStatement skips a line plus any backslash continuations.
func endOfStatement(data []byte, i int) int {
	for {
		next := endOfLine(data, i)
		line := strings.TrimRight(string(data[i:next]), "\r\n")
		if next >= len(data) || !strings.HasSuffix(line, "\\") {
			return next
		}
		i = next
	}
}
