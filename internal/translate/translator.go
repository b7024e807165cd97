package translate

import (
	"context"
	"errors"
)

// ErrTranslateUnavailable 翻译服务不可达或响应不可用
var ErrTranslateUnavailable = errors.New("translate service unavailable")

// Translator 把文本从一种语言翻译到另一种。
// from == to 时实现应原样返回，不产生外呼。
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Func 适配器，便于测试中用闭包充当 Translator
type Func func(ctx context.Context, text, from, to string) (string, error)

func (f Func) Translate(ctx context.Context, text, from, to string) (string, error) {
	return f(ctx, text, from, to)
}
