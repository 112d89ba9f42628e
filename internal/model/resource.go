// Package model はドメインモデルを定義する。
package model

// Envelope はバックエンドAPIの共通レスポンス形式。
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Payload *T     `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Organization は組織（テナント）を表す。
type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Size      string `json:"size"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Domain は接続済みのECストアを表す。DNSのドメインではない。
type Domain struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SiteID         string `json:"siteId,omitempty"`
	Type           string `json:"type"`
	OrganizationID string `json:"organizationId"`
	Status         string `json:"status,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

// Platform は広告・分析プラットフォーム（Google, Facebook, TikTok, Snapchat）を表す。
type Platform struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// Integration はDomainとPlatformの連携を表す。
type Integration struct {
	ID           string `json:"id"`
	DomainID     string `json:"domainId"`
	PlatformID   string `json:"platformId"`
	PlatformName string `json:"platformName,omitempty"`
	Status       string `json:"status,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// IntegrationAccount は連携先プラットフォーム側の広告アカウント。
type IntegrationAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// APIKey はDomainに発行されたAPIキー。
type APIKey struct {
	ID        string `json:"id"`
	DomainID  string `json:"domainId"`
	Key       string `json:"key"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// AuthURL はプラットフォームのOAuth同意画面URL。
type AuthURL struct {
	URL string `json:"url"`
}

// PlatformList はプラットフォーム一覧のペイロード。
type PlatformList struct {
	Platforms []Platform `json:"platforms"`
}

// IntegrationList は連携一覧のペイロード。
type IntegrationList struct {
	Integrations []Integration `json:"integrations"`
}

// SignUpRequest は新規登録リクエスト。
type SignUpRequest struct {
	Email            string `json:"email"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	OrganizationName string `json:"organization_name"`
	OrganizationType string `json:"organization_type"`
	OrganizationSize string `json:"organization_size"`
}

// CreateOrganizationRequest は組織作成リクエスト。
type CreateOrganizationRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size string `json:"size"`
}

// UpdateOrganizationRequest は組織更新リクエスト。
type UpdateOrganizationRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size string `json:"size"`
}

// CreateDomainRequest はDomain作成リクエスト。
type CreateDomainRequest struct {
	Name           string `json:"name"`
	SiteID         string `json:"siteId,omitempty"`
	Type           string `json:"type"`
	OrganizationID string `json:"organizationId"`
}

// UpdateDomainRequest はDomain更新リクエスト。
type UpdateDomainRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateIntegrationWithAccountsRequest は連携作成時に選択したアカウントを登録するリクエスト。
type CreateIntegrationWithAccountsRequest struct {
	IntegrationID string               `json:"integrationId"`
	Accounts      []IntegrationAccount `json:"accounts"`
}

// ShopifyHistoricalRequest はShopifyの過去注文取り込みリクエスト。
type ShopifyHistoricalRequest struct {
	DomainID string `json:"domainId"`
}
