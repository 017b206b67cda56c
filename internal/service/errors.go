// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"
	"fmt"
)

// 输入错误：由编排器在本地处理，返回固定回复，不访问外部服务。
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyQuery   = fmt.Errorf("%w: empty or punctuation-only query", ErrInvalidInput)
	ErrUnknownTopic = fmt.Errorf("%w: unknown topic", ErrInvalidInput)
)

// 回答生成的两类内容错误，都可以重试。
var (
	ErrNoResponse        = errors.New("no response from generation service")
	ErrTruncatedResponse = errors.New("truncated response from generation service")
)

// GenerationError 是重试耗尽后的终止错误，Kind 为 ErrNoResponse 或 ErrTruncatedResponse。
type GenerationError struct {
	Kind     error
	Attempts int
	Last     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed after %d attempt(s): %v", e.Attempts, e.Last)
}

// Unwrap 让 errors.Is(err, ErrNoResponse) 这类判断生效。
func (e *GenerationError) Unwrap() error {
	return e.Kind
}
