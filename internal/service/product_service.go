package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/model"
	"bents-assistant-go/internal/repository"
	"bents-assistant-go/pkg/log"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrProductNotFound 表示要修改或删除的产品不存在。
var ErrProductNotFound = errors.New("product not found")

// ProductInput 是新增或修改产品时的输入。
type ProductInput struct {
	Title    string
	Tags     []string
	Link     string
	ImageURL *string
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(model.SplitTags(model.JoinTags(in.Tags))) == 0 {
		return fmt.Errorf("%w: at least one tag is required", ErrInvalidInput)
	}
	return nil
}

// ProductService 负责产品目录的增删改查以及根据视频标题关联产品。
type ProductService interface {
	// Correlate 返回标签中包含视频标题的产品，没有匹配时返回空切片。
	Correlate(ctx context.Context, videoTitle string) ([]model.Product, error)
	List(ctx context.Context) ([]model.Product, error)
	Create(ctx context.Context, in ProductInput) (*model.Product, error)
	Update(ctx context.Context, id string, in ProductInput) (*model.Product, error)
	Delete(ctx context.Context, id string) error
}

type productService struct {
	repo       repository.ProductRepository
	allowList  map[string]struct{}
	maxResults int
}

// NewProductService 创建一个新的 ProductService 实例。
func NewProductService(repo repository.ProductRepository, cfg config.ProductsConfig) ProductService {
	var allow map[string]struct{}
	if len(cfg.TitleAllowList) > 0 {
		allow = make(map[string]struct{}, len(cfg.TitleAllowList))
		for _, t := range cfg.TitleAllowList {
			allow[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
		}
	}
	return &productService{repo: repo, allowList: allow, maxResults: cfg.MaxResults}
}

// Correlate 先用可选的标题白名单过滤，再在标签上做不区分大小写的子串匹配。
func (s *productService) Correlate(ctx context.Context, videoTitle string) ([]model.Product, error) {
	title := strings.TrimSpace(videoTitle)
	if title == "" {
		return []model.Product{}, nil
	}
	if s.allowList != nil {
		if _, ok := s.allowList[strings.ToLower(title)]; !ok {
			log.Infof("[ProductService] 视频标题不在白名单中, 跳过产品关联: %s", title)
			return []model.Product{}, nil
		}
	}

	products, err := s.repo.FindByTagSubstring(ctx, title, s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to correlate products: %w", err)
	}
	if products == nil {
		products = []model.Product{}
	}
	log.Infof("[ProductService] 视频 '%s' 关联到 %d 个产品", title, len(products))
	return products, nil
}

// List 返回全部产品。
func (s *productService) List(ctx context.Context) ([]model.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

// Create 新增产品并分配 UUID。
func (s *productService) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	product := &model.Product{
		ID:       uuid.NewString(),
		Title:    strings.TrimSpace(in.Title),
		Tags:     model.SplitTags(model.JoinTags(in.Tags)),
		Link:     strings.TrimSpace(in.Link),
		ImageURL: in.ImageURL,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	log.Infof("[ProductService] 新增产品成功, id: %s, title: %s", product.ID, product.Title)
	return product, nil
}

// Update 修改产品。
func (s *productService) Update(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	product := &model.Product{
		ID:       id,
		Title:    strings.TrimSpace(in.Title),
		Tags:     model.SplitTags(model.JoinTags(in.Tags)),
		Link:     strings.TrimSpace(in.Link),
		ImageURL: in.ImageURL,
	}
	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// Delete 删除产品。
func (s *productService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	return nil
}
