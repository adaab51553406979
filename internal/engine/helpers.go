package engine

import "strconv"

func itoa(n int) string { return strconv.Itoa(n) }

// bytesFlag renders a byte count the way the engine's flags expect it:
// plain bytes with a "B" suffix below 1 KiB, otherwise the largest fitting
// binary unit with three decimals (e.g. "10.000GiB").
func bytesFlag(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatInt(bytes, 10) + "B"
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KiB", "MiB", "GiB", "TiB"}
	return strconv.FormatFloat(float64(bytes)/float64(div), 'f', 3, 64) + units[exp]
}
