package spec

import (
	"fmt"
	"strings"
)

type Issue struct {
	// Ref is a logical path into the document, e.g. repos.poky.refspec.
	Ref     string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Ref, i.Message)
}

// ParseError reports a malformed or unsupported spec document.
type ParseError struct {
	Path   string
	Issues []Issue
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("invalid spec")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	for i, issue := range e.Issues {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(issue.String())
	}
	return b.String()
}
