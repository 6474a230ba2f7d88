package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	Status      string
	OrderNo     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// DesignListFilter 查询设计列表的过滤条件
type DesignListFilter struct {
	Page         int
	PageSize     int
	UserID       uint
	OrderID      uint
	OnlyApproved bool
}
