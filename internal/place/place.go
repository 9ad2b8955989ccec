// 包 place：地点自动补全的统一结果模型，各数据源适配器归一化后的唯一对外形态
package place

import (
	"strings"
)

// 文档注释：查询类型提示
// 背景：调用方按业务场景（机票/住宿）收窄候选类型；各适配器自行翻译为数据源参数。
// 约束：空值视为 default；核心层把它当作不透明的缓存键组成部分。
type Type string

const (
	TypeDefault Type = ""
	TypeFlight  Type = "flight"
	TypeLodging Type = "lodging"
)

// KnownTypes：HTTP 边界允许的取值
var KnownTypes = []Type{TypeDefault, TypeFlight, TypeLodging}

// ParseType：解析外部传入的类型参数，未知取值返回 false
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t == "default" {
		return TypeDefault, true
	}
	for _, k := range KnownTypes {
		if k == t {
			return t, true
		}
	}
	return TypeDefault, false
}

// Key：缓存键中的类型部分
func (t Type) Key() string {
	if t == TypeDefault {
		return "default"
	}
	return string(t)
}

// 文档注释：归一化地点结果
// 约束：仅通过 NewResult 构造；Name 必须非空，DisplayName 由其余字段派生；构造后不再修改。
type Result struct {
	Name         string   `json:"name"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Country      string   `json:"country"`
	DisplayName  string   `json:"displayName"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationType string   `json:"locationType"`
}

// Clone：深拷贝（坐标指针不共享）
func (r Result) Clone() Result {
	if r.Latitude != nil {
		r.Latitude = Coord(*r.Latitude)
	}
	if r.Longitude != nil {
		r.Longitude = Coord(*r.Longitude)
	}
	return r
}

// CloneResults：逐条深拷贝；nil 保持 nil
func CloneResults(rs []Result) []Result {
	if rs == nil {
		return nil
	}
	out := make([]Result, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// Fields：适配器映射出的原始字段
type Fields struct {
	Name         string
	City         string
	State        string
	Country      string
	Latitude     *float64
	Longitude    *float64
	LocationType string
}

// NewResult：由原始字段构造结果；名称为空时返回 false，调用方应丢弃该候选
func NewResult(f Fields) (Result, bool) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return Result{}, false
	}
	r := Result{
		Name:         name,
		City:         strings.TrimSpace(f.City),
		State:        strings.TrimSpace(f.State),
		Country:      strings.TrimSpace(f.Country),
		Latitude:     f.Latitude,
		Longitude:    f.Longitude,
		LocationType: strings.TrimSpace(f.LocationType),
	}
	r.DisplayName = displayName(r)
	return r, true
}

// displayName：名称、城市（与名称不同时）、州/省、国家，非空部分以逗号拼接
func displayName(r Result) string {
	parts := []string{r.Name}
	if r.City != "" && !strings.EqualFold(r.City, r.Name) {
		parts = append(parts, r.City)
	}
	if r.State != "" {
		parts = append(parts, r.State)
	}
	if r.Country != "" {
		parts = append(parts, r.Country)
	}
	return strings.Join(parts, ", ")
}

// CacheKey：lower(trim(query)) + ":" + 类型；大小写与首尾空白不同的查询必然命中同一键
func CacheKey(query string, t Type) string {
	return strings.ToLower(strings.TrimSpace(query)) + ":" + t.Key()
}

// Coord：构造可选坐标
func Coord(v float64) *float64 { return &v }
