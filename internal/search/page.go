package search

// PageInfo 分页元数据
type PageInfo struct {
	Total       int `json:"total"`
	Pages       int `json:"pages"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
}

// TotalPages 向上取整
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total-1)/perPage + 1
}

// Offset 第 page 页首条记录的下标；页码越过最后一页时 ok=false。
// 先和总页数比较再相乘，极大的页码不会溢出
func Offset(page, perPage, total int) (offset int, ok bool) {
	if page < 1 || perPage < 1 || total <= 0 {
		return 0, false
	}
	if page-1 > (total-1)/perPage {
		return 0, false
	}
	return (page - 1) * perPage, true
}

// Paginate 返回第 page 页（从 1 开始）；越界页返回空切片
func Paginate[T any](items []T, page, perPage int) ([]T, PageInfo) {
	info := PageInfo{
		Total:       len(items),
		Pages:       TotalPages(len(items), perPage),
		CurrentPage: page,
		PerPage:     perPage,
	}
	start, ok := Offset(page, perPage, len(items))
	if !ok {
		return []T{}, info
	}
	end := len(items)
	if perPage < end-start {
		end = start + perPage
	}
	return items[start:end], info
}
