package testsupport

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = 0x42
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SensorLine mirrors one record of the gyroscope JSON Lines log.
type SensorLine struct {
	Timestamp float64 `json:"timestamp"`
	GyroX     float64 `json:"gyro_x"`
	GyroY     float64 `json:"gyro_y"`
	GyroZ     float64 `json:"gyro_z"`
}

// ReadSensorLog decodes every line of a gyroscope log.
func ReadSensorLog(t testing.TB, path string) []SensorLine {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open sensor log: %v", err)
	}
	defer file.Close()

	var lines []SensorLine
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line SensorLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode sensor line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan sensor log: %v", err)
	}
	return lines
}
