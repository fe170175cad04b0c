package talent

import (
	"regexp"
	"strconv"
)

var treeURLPattern = regexp.MustCompile(`talent-tree/(\d+)/playable-specialization/(\d+)`)

// ExtractInfoFromURL pulls the talent tree id and specialization id out of a
// spec talent-tree URL. ok is false when the URL does not match.
func ExtractInfoFromURL(url string) (tree, spec int, ok bool) {
	m := treeURLPattern.FindStringSubmatch(url)
	if m == nil {
		return 0, 0, false
	}
	tree, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	spec, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return tree, spec, true
}
