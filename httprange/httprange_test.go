package httprange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	for _, test := range []struct {
		header string
		size   uint64
		want   []Range
		err    error
	}{
		{"bytes=0-9", 100, []Range{{0, 10}}, nil},
		{"bytes=0-0", 1, []Range{{0, 1}}, nil},
		{"bytes=1-3", 5, []Range{{1, 3}}, nil},
		{"bytes=0-", 10, []Range{{0, 10}}, nil},
		{"bytes=5-", 10, []Range{{5, 5}}, nil},
		{"bytes=-3", 10, []Range{{7, 3}}, nil},
		{"bytes=-20", 10, []Range{{0, 10}}, nil},
		{"bytes=0-99", 10, []Range{{0, 10}}, nil},
		{"bytes=0-9,20-29", 40, []Range{{0, 10}, {20, 10}}, nil},
		{"bytes= 0-9 , 20-29 ", 40, []Range{{0, 10}, {20, 10}}, nil},
		{"bytes=0-9,90-99,5-", 10, []Range{{0, 10}, {5, 5}}, nil},

		{"bytes=100-", 10, nil, ErrNoOverlap},
		{"bytes=10-20", 10, nil, ErrNoOverlap},
		{"bytes=-0", 10, nil, ErrNoOverlap},
		{"bytes=0-0", 0, nil, ErrNoOverlap},

		{"", 10, nil, ErrInvalid},
		{"bytes=", 10, nil, ErrInvalid},
		{"bytes=,,", 10, nil, ErrInvalid},
		{"octets=0-5", 10, nil, ErrInvalid},
		{"bytes=5-2", 10, nil, ErrInvalid},
		{"bytes=abc-5", 10, nil, ErrInvalid},
		{"bytes=1-xyz", 10, nil, ErrInvalid},
		{"bytes=5", 10, nil, ErrInvalid},
		{"bytes=0-9,5-2", 40, nil, ErrInvalid},
		{"bytes=--5", 10, nil, ErrInvalid},
	} {
		got, err := Parse(test.header, test.size)
		if test.err != nil {
			assert.Equal(t, test.err, err, "header %q", test.header)
			continue
		}
		assert.NoError(t, err, "header %q", test.header)
		assert.Equal(t, test.want, got, "header %q", test.header)
	}
}

func TestRangeEnd(t *testing.T) {
	assert.Equal(t, uint64(9), Range{Start: 0, Length: 10}.End())
	assert.Equal(t, uint64(5), Range{Start: 5, Length: 1}.End())
}
