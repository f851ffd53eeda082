package service

import (
	"ai_interviewer_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTelemetry(t *testing.T) {
	testCases := []struct {
		name string
		raw  *model.Telemetry
		want model.Telemetry
	}{
		{name: "缺失时回退零值", raw: nil, want: model.Telemetry{}},
		{
			name: "负数耗时归零",
			raw:  &model.Telemetry{ResponseTimeMS: -100, PasteDetected: true},
			want: model.Telemetry{ResponseTimeMS: 0, PasteDetected: true},
		},
		{
			name: "合法数据原样保留",
			raw:  &model.Telemetry{ResponseTimeMS: 12000, PasteDetected: false},
			want: model.Telemetry{ResponseTimeMS: 12000, PasteDetected: false},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeTelemetry(tc.raw))
		})
	}
}

func TestSuspicious(t *testing.T) {
	testCases := []struct {
		name      string
		telemetry model.Telemetry
		want      bool
	}{
		{name: "粘贴触发", telemetry: model.Telemetry{PasteDetected: true}, want: true},
		{name: "过快提交触发", telemetry: model.Telemetry{ResponseTimeMS: 2000}, want: true},
		{name: "正常提交不触发", telemetry: model.Telemetry{ResponseTimeMS: 30000}, want: false},
		{name: "无数据不触发", telemetry: model.Telemetry{}, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Suspicious(tc.telemetry))
		})
	}
}
