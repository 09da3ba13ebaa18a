package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// SearchArgs holds the parsed arguments of a search command.
type SearchArgs struct {
	Page    int
	Keyword string
}

// ParseSearchArgs parses arguments for /search, /creator and /tag.
// Format: [-p page] <keyword...>
func ParseSearchArgs(args string) (SearchArgs, error) {
	parts := strings.Fields(args)
	page := 1

	if len(parts) >= 2 && parts[0] == "-p" {
		p, err := parsePageNumber(parts[1])
		if err != nil {
			return SearchArgs{}, err
		}
		page = p
		parts = parts[2:]
	}

	if len(parts) == 0 {
		return SearchArgs{}, fmt.Errorf("keyword is required")
	}

	return SearchArgs{Page: page, Keyword: strings.Join(parts, " ")}, nil
}

// ParsePageArg extracts an optional 1-based page number. Empty input means page 1.
func ParsePageArg(args string) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 1, nil
	}
	return parsePageNumber(strings.Fields(s)[0])
}

func parsePageNumber(s string) (int, error) {
	page, err := strconv.Atoi(s)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page %q, use a number starting at 1", s)
	}
	return page, nil
}
