// Package identity owns account registration, credentials and approval.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/logging"
	"github.com/Krishna180104/cse-leave/internal/models"
)

type Repo interface {
	Create(ctx context.Context, na models.NewAccount) (*models.Account, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	// Approve возвращает changed=true только тому вызову, который снял флаг.
	Approve(ctx context.Context, id int64) (*models.Account, bool, error)
	DeleteUnapproved(ctx context.Context, id int64) (*models.Account, error)
	// Delete и DeleteMany возвращают ещё и пути писем удалённых заявок.
	Delete(ctx context.Context, id int64) (*models.Account, []string, error)
	DeleteMany(ctx context.Context, ids []int64) ([]models.Account, []string, error)
	SearchByRegPrefix(ctx context.Context, prefix string) ([]models.Account, error)
	List(ctx context.Context, onlyPending bool) ([]models.Account, error)
	CountApprovedStudents(ctx context.Context) (int, error)
	CountPending(ctx context.Context) (int, error)
}

// FileRemover удаляет загруженные файлы, не считая ошибкой их отсутствие.
type FileRemover interface {
	Remove(path string) error
}

type Service struct {
	repo  Repo
	files FileRemover
	log   *zap.Logger
	cost  int
	dummy []byte
}

func NewService(repo Repo, files FileRemover, log *zap.Logger) *Service {
	return newService(repo, files, log, bcrypt.DefaultCost)
}

func newService(repo Repo, files FileRemover, log *zap.Logger, cost int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	// хэш-заглушка, чтобы неизвестный email проверялся так же долго, как известный
	dummy, _ := bcrypt.GenerateFromPassword([]byte("no-such-account"), cost)
	return &Service{repo: repo, files: files, log: log, cost: cost, dummy: dummy}
}

// Registration — данные формы регистрации.
type Registration struct {
	Name               string
	RegistrationNumber string
	Email              string
	Password           string
	Role               string
	IDCardImage        *string
}

// Register создаёт аккаунт. Первый аккаунт в пустом хранилище должен быть
// админом и одобряется сразу, остальные ждут админа независимо от роли.
func (s *Service) Register(ctx context.Context, r Registration) (*models.Account, error) {
	na, err := s.normalize(r)
	if err != nil {
		s.dropFile(ctx, r.IDCardImage)
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		s.dropFile(ctx, r.IDCardImage)
		return nil, fmt.Errorf("hash password: %w", err)
	}
	na.PasswordHash = string(hash)

	a, err := s.repo.Create(ctx, na)
	if err != nil {
		s.dropFile(ctx, r.IDCardImage)
		return nil, err
	}
	logging.For(ctx, s.log).Info("account registered",
		zap.Int64("account_id", a.ID),
		zap.String("role", string(a.Role)),
		zap.Bool("approved", a.IsApproved),
	)
	return a, nil
}

func (s *Service) normalize(r Registration) (models.NewAccount, error) {
	name := strings.TrimSpace(r.Name)
	email := strings.ToLower(strings.TrimSpace(r.Email))
	regNo := strings.TrimSpace(r.RegistrationNumber)

	if name == "" {
		return models.NewAccount{}, apperr.Validation("name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return models.NewAccount{}, apperr.Validation("a valid email is required")
	}
	if r.Password == "" {
		return models.NewAccount{}, apperr.Validation("password is required")
	}
	role := models.Student
	if strings.TrimSpace(r.Role) != "" {
		var ok bool
		if role, ok = models.ParseRole(r.Role); !ok {
			return models.NewAccount{}, apperr.Validation("role must be student or admin")
		}
	}
	if role == models.Student && regNo == "" {
		return models.NewAccount{}, apperr.Validation("registrationNumber is required for students")
	}

	na := models.NewAccount{Name: name, Email: email, Role: role, IDCardImage: r.IDCardImage}
	if regNo != "" {
		na.RegistrationNumber = &regNo
	}
	return na, nil
}

// Authenticate не различает неизвестный email и неверный пароль.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.ErrInvalidCredential
	}
	a, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return nil, apperr.ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, apperr.ErrInvalidCredential
	}
	if !a.IsApproved {
		return nil, apperr.ErrNotApproved
	}
	return a, nil
}

// Approve одобряет аккаунт. changed=false, если он уже был одобрен.
func (s *Service) Approve(ctx context.Context, id int64) (*models.Account, bool, error) {
	a, changed, err := s.repo.Approve(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if changed {
		logging.For(ctx, s.log).Info("account approved", zap.Int64("account_id", id))
	}
	return a, changed, nil
}

// Reject удаляет неодобренную заявку на регистрацию вместе с фото.
func (s *Service) Reject(ctx context.Context, id int64) (*models.Account, error) {
	a, err := s.repo.DeleteUnapproved(ctx, id)
	if err != nil {
		return nil, err
	}
	s.dropFile(ctx, a.IDCardImage)
	logging.For(ctx, s.log).Info("signup rejected", zap.Int64("account_id", id))
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (*models.Account, error) {
	a, letters, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.dropFile(ctx, a.IDCardImage)
	s.dropLetters(ctx, letters)
	logging.For(ctx, s.log).Info("account deleted", zap.Int64("account_id", id))
	return a, nil
}

func (s *Service) BulkDelete(ctx context.Context, ids []int64) ([]models.Account, error) {
	if len(ids) == 0 {
		return nil, apperr.Validation("ids must not be empty")
	}
	seen := make(map[int64]struct{}, len(ids))
	uniq := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, apperr.Validation("invalid account id %d", id)
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			uniq = append(uniq, id)
		}
	}
	gone, letters, err := s.repo.DeleteMany(ctx, uniq)
	if err != nil {
		return nil, err
	}
	for _, a := range gone {
		s.dropFile(ctx, a.IDCardImage)
	}
	s.dropLetters(ctx, letters)
	logging.For(ctx, s.log).Info("accounts deleted", zap.Int("requested", len(uniq)), zap.Int("deleted", len(gone)))
	return gone, nil
}

func (s *Service) Search(ctx context.Context, prefix string) ([]models.Account, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, apperr.Validation("prefix is required")
	}
	return s.repo.SearchByRegPrefix(ctx, prefix)
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, onlyPending bool) ([]models.Account, error) {
	return s.repo.List(ctx, onlyPending)
}

func (s *Service) CountApprovedStudents(ctx context.Context) (int, error) {
	return s.repo.CountApprovedStudents(ctx)
}

func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.repo.CountPending(ctx)
}

func (s *Service) dropFile(ctx context.Context, path *string) {
	if path == nil || s.files == nil {
		return
	}
	if err := s.files.Remove(*path); err != nil {
		logging.For(ctx, s.log).Warn("remove stored file", zap.String("path", *path), zap.Error(err))
	}
}

// dropLetters убирает письма заявок, удалённых вместе с аккаунтом.
func (s *Service) dropLetters(ctx context.Context, paths []string) {
	for _, p := range paths {
		s.dropFile(ctx, &p)
	}
}
