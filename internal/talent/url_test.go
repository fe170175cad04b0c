package talent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractInfoFromURL(t *testing.T) {
	tests := []struct {
		url        string
		tree, spec int
		ok         bool
	}{
		{".../talent-tree/12/playable-specialization/34", 12, 34, true},
		{"https://us.api.blizzard.com/data/wow/talent-tree/658/playable-specialization/64?namespace=static-10.2.0_51825-us", 658, 64, true},
		{"https://us.api.blizzard.com/data/wow/talent-tree/658", 0, 0, false},
		{"talent-tree/x/playable-specialization/34", 0, 0, false},
		{"", 0, 0, false},
		{"talent-tree/99999999999999999999999/playable-specialization/1", 0, 0, false},
	}
	for _, tt := range tests {
		tree, spec, ok := ExtractInfoFromURL(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.tree, tree, tt.url)
		assert.Equal(t, tt.spec, spec, tt.url)
	}
}
