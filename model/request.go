package model

import (
	"errors"
	"strings"
)

// CompanyRequest 创建申请人与开户的请求体
type CompanyRequest struct {
	CompanyName string `json:"companyName"`
	Country     string `json:"country"`
}

// Validate 公司名称和国家均不能为空
func (r *CompanyRequest) Validate() error {
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Country = strings.TrimSpace(r.Country)
	if r.CompanyName == "" {
		return errors.New("companyName is required")
	}
	if r.Country == "" {
		return errors.New("country is required")
	}
	return nil
}

// AccessTokenRequest 签发访问令牌的请求体，levelName 可省略
type AccessTokenRequest struct {
	LevelName string `json:"levelName"`
}
