package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		name string
		from InterviewStatus
		to   InterviewStatus
		want bool
	}{
		{name: "DRAFT到READY", from: StatusDraft, to: StatusReady, want: true},
		{name: "READY到ASSIGNED", from: StatusReady, to: StatusAssigned, want: true},
		{name: "ASSIGNED到IN_PROGRESS", from: StatusAssigned, to: StatusInProgress, want: true},
		{name: "IN_PROGRESS到COMPLETED", from: StatusInProgress, to: StatusCompleted, want: true},
		{name: "禁止跳跃", from: StatusDraft, to: StatusAssigned, want: false},
		{name: "禁止回退", from: StatusReady, to: StatusDraft, want: false},
		{name: "终态不可流转", from: StatusCompleted, to: StatusDraft, want: false},
		{name: "原地流转无效", from: StatusReady, to: StatusReady, want: false},
		{name: "未知状态无效", from: "UNKNOWN", to: StatusReady, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestTransitionTo(t *testing.T) {
	t.Run("合法流转修改状态", func(t *testing.T) {
		iv := &Interview{Status: StatusDraft}
		require.NoError(t, iv.TransitionTo(StatusReady))
		assert.Equal(t, StatusReady, iv.Status)
	})

	t.Run("非法流转返回错误且状态不变", func(t *testing.T) {
		iv := &Interview{Status: StatusDraft}
		err := iv.TransitionTo(StatusCompleted)

		var transitionErr *InvalidTransitionError
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, StatusDraft, transitionErr.From)
		assert.Equal(t, StatusCompleted, transitionErr.To)
		assert.Equal(t, StatusDraft, iv.Status)
	})
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	testCases := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{name: "未设置过期时间视为不过期", expiresAt: nil, want: false},
		{name: "未到期", expiresAt: &future, want: false},
		{name: "已过期", expiresAt: &past, want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			iv := &Interview{TokenExpiresAt: tc.expiresAt}
			assert.Equal(t, tc.want, iv.TokenExpired(now))
		})
	}
}

func TestCoveredAreasRoundTrip(t *testing.T) {
	iv := &Interview{}
	assert.Nil(t, iv.CoveredAreas())

	iv.SetCoveredAreas([]string{"Go并发", "系统设计"})
	assert.Equal(t, []string{"Go并发", "系统设计"}, iv.CoveredAreas())
}
