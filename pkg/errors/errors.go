package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrLockNotAcquired 分布式锁已被其他请求持有
var ErrLockNotAcquired = errors.New("资源正在被其他操作处理，请稍后重试")

// DataAccessError 数据存储读写失败，与"查询结果为空"严格区分
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("数据访问失败(%s): %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// NewDataAccessError 包装底层存储错误；err 为 nil 时返回 nil
func NewDataAccessError(op string, err error) error {
	if err == nil {
		return nil
	}
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return err
	}
	return &DataAccessError{Op: op, Err: err}
}

// IsDataAccess 判断错误链中是否包含 DataAccessError
func IsDataAccess(err error) bool {
	var dae *DataAccessError
	return errors.As(err, &dae)
}

// PartialWriteError 两段写入只成功了一半
// Committed 为已落库的部分，Failed 为未能写入（且补偿重试后仍失败）的部分
type PartialWriteError struct {
	Committed  string
	Failed     string
	ResourceID string
	Err        error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("部分写入失败: %s 已提交, %s 写入失败 (resource=%s): %v",
		e.Committed, e.Failed, e.ResourceID, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// AsPartialWrite 从错误链中取出 PartialWriteError
func AsPartialWrite(err error) (*PartialWriteError, bool) {
	var pwe *PartialWriteError
	if errors.As(err, &pwe) {
		return pwe, true
	}
	return nil, false
}
