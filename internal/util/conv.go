package util

import (
	"strconv"
)

// ParseUint 按平台 uint 宽度解析，越界或非数字时返回错误
func ParseUint(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, strconv.IntSize)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// ParseOptionalUint 空字符串视为未设置，返回 0
func ParseOptionalUint(s string) (uint, error) {
	if s == "" {
		return 0, nil
	}
	return ParseUint(s)
}

// ParsePage 解析分页参数，page 从 1 开始，limit 限制在 [1,100]
func ParsePage(pageStr, limitStr string) (page, limit int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
