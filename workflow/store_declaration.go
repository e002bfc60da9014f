package workflow

import (
	"context"
)

type ContextRepo interface {
	SaveWorkflowContext(ctx context.Context, po *WorkflowContextPo) (*WorkflowContextPo, error)
	QueryWorkflowContext(ctx context.Context, param *QueryWorkflowContextParams) ([]*WorkflowContextPo, error)
	DeleteWorkflowContext(ctx context.Context, instanceID int64) error
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
