package types

import "errors"

// 错误分类（对外导出）
// 所有错误在违规处同步返回，调用方通过 errors.Is 判断类别，内部不做重试
var (
	// ErrDuplicateID 插入时ID已存在（图不变量被破坏）
	ErrDuplicateID = errors.New("duplicate id")
	// ErrNotFound 删除或查找的ID不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput 输入不合法，例如并行合并时Task不是单一Script任务，或Task没有任何子任务
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration 配置错误，例如未知的聚类算法名
	ErrConfiguration = errors.New("configuration error")
	// ErrCycle 图中检测到环（输入假定无环）
	ErrCycle = errors.New("cycle detected")
)
