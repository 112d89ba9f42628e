package handler

import (
	"context"

	"github.com/hitoshi/datapulse-console/internal/backend"
	"github.com/hitoshi/datapulse-console/internal/model"
)

// 各画面が必要とするバックエンドAPI。backend.Clientがすべてを満たす。

// OrganizationAPI は組織の操作。
type OrganizationAPI interface {
	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	CreateOrganization(ctx context.Context, req model.CreateOrganizationRequest) (*model.Organization, error)
	UpdateOrganization(ctx context.Context, id string, req model.UpdateOrganizationRequest) (*model.Organization, error)
}

// DomainAPI はDomainとAPIキーの操作。
type DomainAPI interface {
	ListDomains(ctx context.Context) ([]model.Domain, error)
	GetDomain(ctx context.Context, id string) (*model.Domain, error)
	CreateDomain(ctx context.Context, req model.CreateDomainRequest) (*model.Domain, error)
	UpdateDomain(ctx context.Context, req model.UpdateDomainRequest) (*model.Domain, error)
	DeleteDomain(ctx context.Context, id string) error
	ListAPIKeys(ctx context.Context) ([]model.APIKey, error)
	GetAPIKeyByDomain(ctx context.Context, domainID string) (*model.APIKey, error)
}

// PlatformAPI はプラットフォームの参照。
type PlatformAPI interface {
	ListPlatforms(ctx context.Context) ([]model.Platform, error)
	GetPlatform(ctx context.Context, id string) (*model.Platform, error)
}

// IntegrationAPI は連携の操作。
type IntegrationAPI interface {
	PlatformAuthURL(ctx context.Context, kind backend.PlatformKind, domainID, platformID string) (string, error)
	GetIntegration(ctx context.Context, id string) (*model.Integration, error)
	ListIntegrationsByDomain(ctx context.Context, domainID string) ([]model.Integration, error)
	DeleteIntegration(ctx context.Context, id string) error
	CreateIntegrationWithAccounts(ctx context.Context, req model.CreateIntegrationWithAccountsRequest) (*model.Integration, error)
}

// EventAPI は過去注文の取り込み。
type EventAPI interface {
	ImportZidHistorical(ctx context.Context, domainID string) error
	ImportSallaHistorical(ctx context.Context, domainID string) error
	ImportShopifyHistorical(ctx context.Context, domainID string) error
}

// ConsoleAPI はすべての画面のバックエンドAPI。
type ConsoleAPI interface {
	OrganizationAPI
	DomainAPI
	PlatformAPI
	IntegrationAPI
	EventAPI
}

var _ ConsoleAPI = (*backend.Client)(nil)
