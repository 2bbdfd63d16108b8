package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/cinematch/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertColumns 导入时覆盖的字段，不包含 embedding
var upsertColumns = []string{
	"title", "overview", "release_date", "vote_average", "popularity",
	"poster_path", "backdrop_path", "genre_ids", "updated_at",
}

// MovieRepository 电影主存储
type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// Ping 检查数据库是否可用
func (r *MovieRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// FindByID 根据 ID 查找电影，不存在返回 nil, nil
func (r *MovieRepository) FindByID(ctx context.Context, id int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&movie).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// FindAll 按 id 顺序返回全部电影
func (r *MovieRepository) FindAll(ctx context.Context) ([]model.Movie, error) {
	var movies []model.Movie
	err := r.db.WithContext(ctx).Order("id ASC").Find(&movies).Error
	return movies, err
}

// FindAllExcept 返回除指定 id 外的全部电影，顺序同 FindAll
func (r *MovieRepository) FindAllExcept(ctx context.Context, id int) ([]model.Movie, error) {
	var movies []model.Movie
	err := r.db.WithContext(ctx).Where("id <> ?", id).Order("id ASC").Find(&movies).Error
	return movies, err
}

// Upsert 按 id 创建或更新电影，已有的 embedding 保留
func (r *MovieRepository) Upsert(ctx context.Context, movie *model.Movie) error {
	movie.Touch(time.Now())
	return r.db.WithContext(ctx).
		Omit("embedding").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(movie).Error
}

// SaveEmbedding 覆盖电影的向量
func (r *MovieRepository) SaveEmbedding(ctx context.Context, id int, vec []float32) error {
	movie := model.Movie{ID: id}
	movie.SetEmbedding(vec)

	res := r.db.WithContext(ctx).Model(&model.Movie{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":  movie.Embedding,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("movie %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// Create 新建电影（含向量时一并写入）
func (r *MovieRepository) Create(ctx context.Context, movie *model.Movie) error {
	movie.Touch(time.Now())
	return r.db.WithContext(ctx).Create(movie).Error
}

// Drop 删除 movies 表，表不存在不算错误
func (r *MovieRepository) Drop(ctx context.Context) error {
	return r.db.WithContext(ctx).Migrator().DropTable(&model.Movie{})
}

// Migrate 重建 movies 表
func (r *MovieRepository) Migrate(ctx context.Context) error {
	return Migrate(ctx, r.db)
}
