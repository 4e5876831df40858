package domain

import "context"

// ServicePort is consumed by handlers and other modules
type ServicePort interface {
	Connect(ctx context.Context, in ConnectInput) (ConnectResult, error)
	Callback(ctx context.Context, code, state string) (CallbackResult, error)

	ListTokens(ctx context.Context) ([]TokenView, error)
	GetToken(ctx context.Context, tenant string) (TokenView, error)
	PutToken(ctx context.Context, in TokenInput) (TokenView, error)
	DeleteToken(ctx context.Context, tenant string) error
	RefreshToken(ctx context.Context, tenant string) (TokenView, error)
}
