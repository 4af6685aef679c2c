package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// GenerateRequestID 生成请求 ID
func GenerateRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}

// GenerateJobID 生成延迟任务 ID
func GenerateJobID() string {
	return "job_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}

// DeletedProjectName 生成软删除项目的占位名称
func DeletedProjectName() string {
	return "deleted-project-" + uuid.New().String()
}

// Truncate 按字符截断字符串，超出部分以 "..." 结尾，结果长度不超过 max
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
