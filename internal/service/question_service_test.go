package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextFocusArea(t *testing.T) {
	all := []string{"Go并发", "系统设计", "数据库"}

	testCases := []struct {
		name     string
		covered  []string
		wantArea string
		wantOK   bool
	}{
		{name: "无覆盖时取第一个", covered: nil, wantArea: "Go并发", wantOK: true},
		{name: "按原始顺序取下一个", covered: []string{"Go并发"}, wantArea: "系统设计", wantOK: true},
		{name: "跳过乱序覆盖项", covered: []string{"系统设计"}, wantArea: "Go并发", wantOK: true},
		{name: "全部覆盖后结束", covered: []string{"Go并发", "系统设计", "数据库"}, wantArea: "", wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			area, ok := NextFocusArea(all, tc.covered)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantArea, area)
		})
	}
}
