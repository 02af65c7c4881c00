package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── PostgreSQL SMALLINT[] 自定义类型 ──

// IntArray 对应 PostgreSQL 整数数组，实现 GORM Scanner/Valuer 接口。
// 用于技术员工作日（0=周日 … 6=周六）。
type IntArray []int

// Scan 将 {1,2,3} 文本解析为 []int。
func (a *IntArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	s, err := arrayText(src, "IntArray")
	if err != nil {
		return err
	}
	if s == "" {
		*a = IntArray{}
		return nil
	}
	parts := strings.Split(s, ",")
	arr := make(IntArray, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("IntArray.Scan: invalid element %q: %w", p, err)
		}
		arr = append(arr, n)
	}
	*a = arr
	return nil
}

// Value 将 []int 序列化为 {1,2,3} 文本。
func (a IntArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	parts := make([]string, len(a))
	for i, n := range a {
		parts[i] = strconv.Itoa(n)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// ── PostgreSQL TEXT[] 自定义类型 ──

// StringArray 对应 PostgreSQL TEXT[]。元素一律加双引号输出，
// 解析时兼容带引号与不带引号两种写法。用于 assigned_to、specialties。
type StringArray []string

// Scan 将 {"a","b"} 或 {a,b} 文本解析为 []string。
func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	s, err := arrayText(src, "StringArray")
	if err != nil {
		return err
	}
	if s == "" {
		*a = StringArray{}
		return nil
	}

	var (
		arr     StringArray
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quoted:
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			arr = append(arr, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if quoted {
		return fmt.Errorf("StringArray.Scan: unterminated quote in %q", s)
	}
	arr = append(arr, strings.TrimSpace(cur.String()))
	*a = arr
	return nil
}

// Value 将 []string 序列化为 {"a","b"} 文本。
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	parts := make([]string, len(a))
	for i, s := range a {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		parts[i] = `"` + s + `"`
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// First 返回第一个元素，空数组返回空串
func (a StringArray) First() string {
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

func arrayText(src interface{}, typ string) (string, error) {
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return "", fmt.Errorf("%s.Scan: unsupported type %T", typ, src)
	}
	return strings.Trim(s, "{}"), nil
}

// newID 主键为空时生成 UUID（PostgreSQL 侧另有 gen_random_uuid() 默认值）
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy *string   `gorm:"type:uuid"                          json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy *string   `gorm:"type:uuid"                          json:"updated_by,omitempty"`
}

// SoftDeleteModel 支持软删除的审计字段
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index"    json:"deleted_at,omitempty"`
	DeletedBy *string        `gorm:"type:uuid" json:"deleted_by,omitempty"`
}

// VersionedModel 支持乐观锁的软删除模型
type VersionedModel struct {
	SoftDeleteModel
	Version int `gorm:"not null;default:1" json:"version"`
}
