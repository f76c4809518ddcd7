package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sig-0/centavo/storage/types"
)

func TestPageBounds(t *testing.T) {
	t.Parallel()

	testTable := []struct {
		name           string
		query          *types.RunQuery
		expectedOffset int64
		expectedLimit  int32
	}{
		{
			"nil query",
			nil,
			0,
			DefaultPageLimit,
		},
		{
			"zero limit",
			&types.RunQuery{Offset: 10},
			10,
			DefaultPageLimit,
		},
		{
			"limit over max",
			&types.RunQuery{Limit: MaxPageLimit + 1},
			0,
			MaxPageLimit,
		},
		{
			"negative offset",
			&types.RunQuery{Offset: -5, Limit: 20},
			0,
			20,
		},
	}

	for _, testCase := range testTable {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			offset, limit := PageBounds(testCase.query)

			assert.Equal(t, testCase.expectedOffset, offset)
			assert.Equal(t, testCase.expectedLimit, limit)
		})
	}
}
