package service

import (
	"context"
	"fmt"

	"forest-fashion/internal/models"
	"forest-fashion/internal/util"
)

const (
	recentOrdersLimit = 5
	topProductsLimit  = 5
)

// StatsService computes the admin dashboard on every call.
type StatsService struct {
	stats    StatsRepository
	users    UserRepository
	products ProductRepository
}

func NewStatsService(stats StatsRepository, users UserRepository, products ProductRepository) *StatsService {
	return &StatsService{stats: stats, users: users, products: products}
}

func (s *StatsService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	ctx, span := util.StartSpan(ctx, "StatsService.Dashboard")
	defer span.End()

	var (
		out models.DashboardStats
		err error
	)
	if out.TotalProducts, err = s.stats.CountProducts(ctx); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if out.TotalOrders, err = s.stats.CountOrders(ctx); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	if out.TotalUsers, err = s.stats.CountUsers(ctx); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if out.TotalRevenue, err = s.stats.Revenue(ctx); err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}

	recent, err := s.stats.RecentOrders(ctx, recentOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	if out.RecentOrders, err = populateOrders(ctx, s.users, s.products, recent); err != nil {
		return nil, err
	}

	if out.TopProducts, err = s.stats.TopProducts(ctx, topProductsLimit); err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	return &out, nil
}
