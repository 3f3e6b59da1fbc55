package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuantity 请求数量不合法（必须大于0）
var ErrInvalidQuantity = errors.New("数量必须大于0")

// CycleError BOM图中存在循环引用，本次遍历终止
type CycleError struct {
	Path []string // 沿祖先链的产品SKU，末尾为重复出现的组件
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("BOM存在循环引用: %s", strings.Join(e.Path, " -> "))
}

// NoActiveBOMError 产品没有激活的BOM版本
type NoActiveBOMError struct {
	ProductID string
	SKU       string
}

func (e *NoActiveBOMError) Error() string {
	name := e.SKU
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("产品 %s 没有激活的BOM", name)
}
