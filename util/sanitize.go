package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var filenameStripRe = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceFiles = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM0": {}, "COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT0": {}, "LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SecureFilename returns a flat, ASCII-only version of name that is safe to
// join to a storage directory. It follows werkzeug's secure_filename:
//
//	"My cool movie.mov"   -> "My_cool_movie.mov"
//	"../../../etc/passwd" -> "etc_passwd"
//	"über.jpg"            -> "uber.jpg"
//
// The result may be empty; callers must reject that.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	name = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		if r == '/' || r == '\\' {
			return ' '
		}
		return r
	}, name)

	name = strings.Join(strings.Fields(name), "_")
	name = filenameStripRe.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name != "" {
		if _, ok := windowsDeviceFiles[strings.ToUpper(strings.Split(name, ".")[0])]; ok {
			name = "_" + name
		}
	}
	return name
}
