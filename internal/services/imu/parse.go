package imu

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLine decodes one gyroscope record. ok is false for lines that are not
// gyroscope records at all (other sensor channels, banners); err reports a
// gyroscope record that is malformed.
func ParseLine(line string) (x, y, z float64, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, 0, 0, false, nil
	}
	fields := strings.Split(line, ",")
	if len(fields) == 4 {
		tag := strings.ToUpper(strings.TrimSpace(fields[0]))
		if tag != "G" && tag != "GYRO" {
			return 0, 0, 0, false, nil
		}
		fields = fields[1:]
	}
	if len(fields) != 3 {
		return 0, 0, 0, false, nil
	}
	var vals [3]float64
	for i, f := range fields {
		v, perr := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if perr != nil {
			return 0, 0, 0, false, fmt.Errorf("gyro field %d: %w", i, perr)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], true, nil
}
