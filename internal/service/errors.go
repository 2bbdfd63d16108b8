package service

import "errors"

var (
	// ErrNotFound 电影不存在或尚未生成向量，对外表现为 404
	ErrNotFound = errors.New("not found")
	// ErrValidation 记录或参数不合法
	ErrValidation = errors.New("validation failed")
	// ErrConflict 主键已存在
	ErrConflict = errors.New("already exists")
	// ErrUnavailable 存储在重试耗尽后仍不可达，启动失败
	ErrUnavailable = errors.New("store unavailable")
)
