package repository

import (
	"fmt"
)

// StoreError 持久化读写失败
// 调用方记录日志后继续处理其他设备，决策推迟到下一轮轮询
type StoreError struct {
	Op  string // get, put, update, delete, list
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("alert store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
