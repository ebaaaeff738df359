package handler

// ApiResponse 管理接口的统一响应结构。
// 面向下载客户端的公开接口（/download/、/progress/、/downloaded/）
// 保持历史 JSON 形状，不走这个结构。
type ApiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}
