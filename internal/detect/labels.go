package detect

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadLabels reads a class-name file with one name per line. Blank lines and
// lines starting with '#' are skipped; the remaining line order defines the
// class ids.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return labels, nil
}

// LabelFor returns the label for id, or "class N" when the table has none.
func LabelFor(labels []string, id int) string {
	if id >= 0 && id < len(labels) {
		return labels[id]
	}
	return "class " + strconv.Itoa(id)
}
