package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sifan077/GateLink/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist or is not owned by the caller.
	ErrLinkNotFound = errors.New("link not found")
	// ErrTokenCollision signals that the token is already issued to another link.
	ErrTokenCollision = errors.New("token already in use")
	// ErrGateFailed signals that the atomic resolve found the link disabled, expired, exhausted or not yet revealed.
	ErrGateFailed = errors.New("link gate failed")
)

const tokenBatchSize = 1000

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByToken(ctx context.Context, token string) (*model.Link, error)
	GetByOwner(ctx context.Context, ownerID, id string) (*model.Link, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error)
	// Disable deactivates the link; changed is false when it was already inactive.
	Disable(ctx context.Context, ownerID, id string) (link *model.Link, changed bool, err error)
	// ResolveAndIncrement re-validates the gates of the link and increments its click
	// count in one conditional update, returning the target URL on success.
	ResolveAndIncrement(ctx context.Context, token string, now time.Time) (string, error)
	EachToken(ctx context.Context, fn func(token string)) error
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrTokenCollision
		}
		return err
	}
	return nil
}

func (r *linkRepository) GetByToken(ctx context.Context, token string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) GetByOwner(ctx context.Context, ownerID, id string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *linkRepository) Disable(ctx context.Context, ownerID, id string) (*model.Link, bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ? AND owner_id = ? AND is_active = ?", id, ownerID, true).
		Update("is_active", false)
	if result.Error != nil {
		return nil, false, result.Error
	}

	link, err := r.GetByOwner(ctx, ownerID, id)
	if err != nil {
		return nil, false, err
	}
	return link, result.RowsAffected > 0, nil
}

func (r *linkRepository) ResolveAndIncrement(ctx context.Context, token string, now time.Time) (string, error) {
	var target string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Link{}).
			Where("token = ?", token).
			Where("is_active = ?", true).
			Where("(expires_at IS NULL OR expires_at > ?)", now).
			Where("(max_clicks IS NULL OR click_count < max_clicks)").
			Where("(reveal_at IS NULL OR reveal_at <= ?)", now).
			UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.Link{}).Where("token = ?", token).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrLinkNotFound
			}
			return ErrGateFailed
		}

		var link model.Link
		if err := tx.Select("target_url").Where("token = ?", token).Take(&link).Error; err != nil {
			return err
		}
		target = link.TargetURL
		return nil
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

func (r *linkRepository) EachToken(ctx context.Context, fn func(token string)) error {
	var batch []model.Link
	return r.db.WithContext(ctx).
		Model(&model.Link{}).
		Select("id", "token").
		FindInBatches(&batch, tokenBatchSize, func(tx *gorm.DB, _ int) error {
			for _, link := range batch {
				fn(link.Token)
			}
			return nil
		}).Error
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
