package pipeline

import (
	"regexp"
	"strings"
)

// AutoOutputType asks ResolveOutputType to negotiate the format from the
// client's Accept header.
const AutoOutputType = "auto"

var acceptImageType = regexp.MustCompile(`image/([^,;\s]+)`)

// ResolveOutputType picks the output format for a request.
//
// An explicit requested type is returned as is and private is false. For
// "auto", the image/* subtypes of accept plus png and jpeg form the set of
// acceptable formats, and the first entry of preferred found in that set
// wins; without a match the current format is kept. Auto responses vary by
// client, so private is true for them.
func ResolveOutputType(requested, accept string, preferred []string, current string) (format string, private bool) {
	if !strings.EqualFold(strings.TrimSpace(requested), AutoOutputType) {
		return requested, false
	}

	supported := map[string]bool{"png": true, "jpeg": true}
	for _, m := range acceptImageType.FindAllStringSubmatch(accept, -1) {
		supported[strings.ToLower(m[1])] = true
	}
	for _, p := range preferred {
		if supported[strings.ToLower(p)] {
			return p, true
		}
	}
	return current, true
}
