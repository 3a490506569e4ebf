package catalog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads repeating 3-line element-set records (name line, then two data
// lines) from r. The catalog identifier comes from columns 3-7 of the second
// data line. Malformed records are skipped with a warning log.
func Parse(r io.Reader, fetchedAt time.Time, logger *slog.Logger) ([]ElementSet, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading element sets: %w", err)
	}

	var sets []ElementSet
	for i := 0; i+2 < len(lines); {
		name := lines[i]
		line1 := lines[i+1]
		line2 := lines[i+2]

		// Validate line prefixes before trusting the record boundary.
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed element set record", "line_index", i, "name", name)
			i++
			continue
		}

		if len(line2) < 7 {
			logger.Warn("skipping element set with short line2", "name", name)
			i += 3
			continue
		}
		idStr := strings.TrimSpace(line2[2:7])
		noradID, err := strconv.Atoi(idStr)
		if err != nil {
			logger.Warn("skipping element set with invalid catalog id", "id_str", idStr, "name", name)
			i += 3
			continue
		}

		sets = append(sets, ElementSet{
			NoradID:   noradID,
			Name:      strings.TrimSpace(name),
			Line1:     line1,
			Line2:     line2,
			FetchedAt: fetchedAt,
		})
		i += 3
	}

	return sets, nil
}
