package pgrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		search string
		want   string
	}{
		{search: "fee", want: `%fee%`},
		{search: "100%", want: `%100\%%`},
		{search: "first_name", want: `%first\_name%`},
		{search: `C:\docs`, want: `%C:\\docs%`},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			assert.Equal(t, tt.want, containsPattern(tt.search))
		})
	}
}
