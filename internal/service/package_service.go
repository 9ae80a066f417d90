package service

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PackageService interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Package, error)
	Get(ctx context.Context, id primitive.ObjectID) (*domain.Package, error)
	Create(ctx context.Context, actor domain.Actor, pkg *domain.Package) (*domain.Package, error)
}

type packageService struct {
	packageRepo repository.PackageRepository
}

func NewPackageService(packageRepo repository.PackageRepository) PackageService {
	return &packageService{packageRepo: packageRepo}
}

func (s *packageService) List(ctx context.Context, activeOnly bool) ([]domain.Package, error) {
	return s.packageRepo.List(ctx, activeOnly)
}

func (s *packageService) Get(ctx context.Context, id primitive.ObjectID) (*domain.Package, error) {
	pkg, err := s.packageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return pkg, nil
}

// Create adds a package to the catalog. Admin only.
func (s *packageService) Create(ctx context.Context, actor domain.Actor, pkg *domain.Package) (*domain.Package, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrAccessDenied
	}
	pkg.Name = strings.TrimSpace(pkg.Name)
	switch {
	case pkg.Name == "":
		return nil, fmt.Errorf("%w: package name is required", ErrInvalidInput)
	case pkg.Price <= 0:
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	case pkg.DurationDays <= 0:
		return nil, fmt.Errorf("%w: durationDays must be positive", ErrInvalidInput)
	case pkg.TrainingSessions < 0:
		return nil, fmt.Errorf("%w: trainingSessions cannot be negative", ErrInvalidInput)
	}

	id, err := s.packageRepo.Create(ctx, pkg)
	if err != nil {
		return nil, err
	}
	pkg.ID = id
	log.Printf("INFO: Package %s (%s) created", pkg.Name, id.Hex())
	return pkg, nil
}
