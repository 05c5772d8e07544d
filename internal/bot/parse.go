package bot

import (
	"fmt"
	"strings"
)

// ParseSourceArg extracts a source name from a command argument string.
func ParseSourceArg(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", fmt.Errorf("source name is required")
	}
	return strings.ToLower(fields[0]), nil
}
