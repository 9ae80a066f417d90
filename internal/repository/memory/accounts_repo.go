package memory

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]domain.User
}

// NewUserRepository creates an empty in-memory user repository.
func NewUserRepository() repository.UserRepository {
	return &userRepository{users: make(map[primitive.ObjectID]domain.User)}
}

func (r *userRepository) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}

	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return user.ID, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

type trainerRepository struct {
	mu       sync.RWMutex
	trainers map[primitive.ObjectID]domain.Trainer
}

// NewTrainerRepository creates an empty in-memory trainer repository.
func NewTrainerRepository() repository.TrainerRepository {
	return &trainerRepository{trainers: make(map[primitive.ObjectID]domain.Trainer)}
}

func copyTrainer(t domain.Trainer) domain.Trainer {
	days := make([]domain.ScheduleDay, len(t.Schedule))
	for i, d := range t.Schedule {
		d.WorkingHours = append([]domain.WorkingHours{}, d.WorkingHours...)
		days[i] = d
	}
	t.Schedule = days
	return t
}

func (r *trainerRepository) Create(_ context.Context, trainer *domain.Trainer) error {
	if trainer.ID == primitive.NilObjectID {
		return errors.New("trainer profile requires the trainer's user ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.trainers[trainer.ID]; exists {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	trainer.CreatedAt = now
	trainer.UpdatedAt = now
	if trainer.Schedule == nil {
		trainer.Schedule = domain.EmptyWeek()
	}
	r.trainers[trainer.ID] = copyTrainer(*trainer)
	return nil
}

func (r *trainerRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Trainer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trainers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t = copyTrainer(t)
	return &t, nil
}

func (r *trainerRepository) List(_ context.Context) ([]domain.Trainer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	trainers := make([]domain.Trainer, 0, len(r.trainers))
	for _, t := range r.trainers {
		trainers = append(trainers, copyTrainer(t))
	}
	sort.Slice(trainers, func(i, j int) bool { return trainers[i].Name < trainers[j].Name })
	return trainers, nil
}

func (r *trainerRepository) UpdateSchedule(_ context.Context, id primitive.ObjectID, schedule []domain.ScheduleDay) (*domain.Trainer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trainers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t.Schedule = schedule
	t.UpdatedAt = time.Now().UTC()
	t = copyTrainer(t)
	r.trainers[id] = t
	out := copyTrainer(t)
	return &out, nil
}

type packageRepository struct {
	mu       sync.RWMutex
	packages map[primitive.ObjectID]domain.Package
}

// NewPackageRepository creates an empty in-memory package repository.
func NewPackageRepository() repository.PackageRepository {
	return &packageRepository{packages: make(map[primitive.ObjectID]domain.Package)}
}

func (r *packageRepository) Create(_ context.Context, pkg *domain.Package) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pkg.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now
	r.packages[pkg.ID] = *pkg
	return pkg.ID, nil
}

func (r *packageRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *packageRepository) List(_ context.Context, activeOnly bool) ([]domain.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	packages := []domain.Package{}
	for _, p := range r.packages {
		if activeOnly && !p.Active {
			continue
		}
		packages = append(packages, p)
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Price < packages[j].Price })
	return packages, nil
}
