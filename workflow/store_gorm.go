package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WorkflowContextPo struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	InstanceID   int64  `gorm:"column:instance_id;uniqueIndex" json:"instance_id"`
	InitialData  []byte `gorm:"column:initial_data" json:"initial_data"`   // 初始参数, json object
	AppendedData []byte `gorm:"column:appended_data" json:"appended_data"` // 追加数据, key -> json序列化后的value
	CreatedAt    int64  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    int64  `gorm:"column:updated_at" json:"updated_at"`
}

func (WorkflowContextPo) TableName() string {
	return "workflow_context"
}

type QueryWorkflowContextParams struct {
	InstanceID    *int64  `json:"instance_id"`
	InstanceIDIn  []int64 `json:"instance_id_in"`
	UpdatedBefore *int64  `json:"updated_before"`
	OrderbyIDAsc  *bool   `json:"orderby_id_asc"`
	Page          *Pager  `json:"page" validate:"required"`
}

type Pager struct {
	IsNoLimit *bool `json:"is_no_limit"`
	Page      int64 `json:"page"`
	Size      int64 `json:"size"`
}

type contextRepo struct {
	db *gorm.DB
}

func NewContextRepo(db *gorm.DB) ContextRepo {
	return &contextRepo{
		db: db,
	}
}

// SaveWorkflowContext 按 instance_id 覆盖写入
func (r *contextRepo) SaveWorkflowContext(ctx context.Context, po *WorkflowContextPo) (*WorkflowContextPo, error) {
	if po == nil {
		return nil, fmt.Errorf("nil WorkflowContextPo")
	}
	now := time.Now().Unix()
	po.CreatedAt = now
	po.UpdatedAt = now
	err := r.GetDBWithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"initial_data", "appended_data", "updated_at"}),
	}).Create(po).Error
	if err != nil {
		return nil, errors.WithMessagef(err, "SaveWorkflowContext failed, instanceID: %d", po.InstanceID)
	}
	return po, nil
}

func buildQueryWorkflowContextParams(db *gorm.DB, param *QueryWorkflowContextParams) (*gorm.DB, error) {
	if param == nil {
		return nil, errors.New("nil QueryWorkflowContextParams")
	}
	if param.InstanceID != nil {
		db = db.Where("instance_id = ?", *param.InstanceID)
	}
	if len(param.InstanceIDIn) != 0 {
		db = db.Where("instance_id IN ?", param.InstanceIDIn)
	}
	if param.UpdatedBefore != nil {
		db = db.Where("updated_at < ?", *param.UpdatedBefore)
	}
	if param.OrderbyIDAsc != nil {
		if *param.OrderbyIDAsc {
			db = db.Order("id asc")
		} else {
			db = db.Order("id desc")
		}
	}
	if param.Page == nil {
		return nil, errors.New("page is nil")
	}
	if param.Page.IsNoLimit != nil && *param.Page.IsNoLimit {
		return db, nil
	}
	if param.Page.Page == 0 {
		param.Page.Page = 1
	}
	if param.Page.Size == 0 {
		param.Page.Size = 10
	}
	db = db.Offset(int(param.Page.Page-1) * int(param.Page.Size)).Limit(int(param.Page.Size))
	return db, nil
}

func (r *contextRepo) QueryWorkflowContext(ctx context.Context, param *QueryWorkflowContextParams) ([]*WorkflowContextPo, error) {
	if param == nil {
		return nil, fmt.Errorf("nil QueryWorkflowContextParams")
	}
	db := r.GetDBWithContext(ctx).Model(&WorkflowContextPo{})
	db, err := buildQueryWorkflowContextParams(db, param)
	if err != nil {
		return nil, errors.WithMessage(err, "buildQueryWorkflowContextParams failed")
	}
	pos := make([]*WorkflowContextPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryWorkflowContext failed")
	}
	return pos, nil
}

func (r *contextRepo) DeleteWorkflowContext(ctx context.Context, instanceID int64) error {
	if err := r.GetDBWithContext(ctx).Where("instance_id = ?", instanceID).Delete(&WorkflowContextPo{}).Error; err != nil {
		return errors.WithMessagef(err, "DeleteWorkflowContext failed, instanceID: %d", instanceID)
	}
	return nil
}

type contextKey string

const (
	transactionContextKey contextKey = "transaction"
)

func (r *contextRepo) GetDBWithContext(ctx context.Context) *gorm.DB {
	tx := ctx.Value(transactionContextKey)
	if tx == nil {
		return r.db.WithContext(ctx)
	}
	return tx.(*gorm.DB)
}

func (r *contextRepo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(transactionContextKey) != nil {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, transactionContextKey, tx))
	})
}
