package nest

import (
	"fmt"
)

// AuthError 凭据刷新失败（本轮轮询中止，下一轮重试）
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("nest authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError 遥测数据读取失败（本轮轮询中止，不改变任何存储状态）
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch humidity readings: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
