package service

import "ai_interviewer_backend/internal/model"

// NormalizeTelemetry 规整候选人端上报的提交元数据。
// 永不失败：缺失或非法的数据回退为零值，面试流程不因此中断。
func NormalizeTelemetry(raw *model.Telemetry) model.Telemetry {
	if raw == nil {
		return model.Telemetry{}
	}
	t := *raw
	if t.ResponseTimeMS < 0 {
		t.ResponseTimeMS = 0
	}
	return t
}
