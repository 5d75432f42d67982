package issuer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/violet-hub/keygate/database/models"
	"github.com/violet-hub/keygate/database/repo/bindings"
	"github.com/violet-hub/keygate/utils"
	"golang.org/x/sync/singleflight"
)

// KeyGenerator produces candidate keys. Satisfied by keygen.Generator.
type KeyGenerator interface {
	Generate() (string, error)
}

// maxGenerateAttempts bounds collision retries. With a 62^32 key space this
// only trips when the RNG is broken.
const maxGenerateAttempts = 10

var (
	// ErrEmptyIdentity rejects issuance without an identity reference.
	ErrEmptyIdentity = errors.New("identity must not be empty")
	// ErrKeySpaceExhausted is returned after too many generation collisions.
	ErrKeySpaceExhausted = errors.New("could not generate a collision-free key")
)

// Service guarantees one live key per identity: repeated requests inside an
// activation window return the same key, an expired row is reactivated in
// place, and a missing row is created exactly once even under concurrent
// requests for the same identity.
type Service struct {
	repo   *bindings.Repository
	gen    KeyGenerator
	window time.Duration

	// group collapses concurrent in-process requests per identity; the store's
	// unique index on identity is what actually enforces convergence.
	group singleflight.Group

	now func() time.Time
}

// NewService creates the issuance service.
func NewService(repo *bindings.Repository, gen KeyGenerator, window time.Duration) *Service {
	return &Service{
		repo:   repo,
		gen:    gen,
		window: window,
		now:    time.Now,
	}
}

// IssueOrGet returns the identity's key, creating or reactivating as needed.
func (s *Service) IssueOrGet(ctx context.Context, identity string) (string, error) {
	if identity == "" {
		return "", ErrEmptyIdentity
	}

	key, err, _ := s.group.Do(identity, func() (interface{}, error) {
		return s.issueOrGet(ctx, identity)
	})
	if err != nil {
		return "", err
	}
	return key.(string), nil
}

func (s *Service) issueOrGet(ctx context.Context, identity string) (string, error) {
	binding, err := s.repo.GetByIdentity(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("failed to look up binding: %w", err)
	}
	if binding != nil {
		return s.refresh(ctx, binding, identity)
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		key, err := s.gen.Generate()
		if err != nil {
			return "", err
		}

		taken, err := s.repo.KeyExists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to check key uniqueness: %w", err)
		}
		if taken {
			continue
		}

		inserted, err := s.repo.CreateIgnoreConflict(ctx, &models.KeyBinding{
			Identity:    identity,
			Key:         key,
			ActivatedAt: s.now(),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create binding: %w", err)
		}
		if inserted {
			log.Printf("[Issuer] Issued new key for identity %s", utils.SanitizeLogMessage(identity))
			return key, nil
		}

		// Lost a race. If another request inserted for this identity, converge
		// on the winner's key; otherwise the conflict was on the generated key
		// and another attempt is fine.
		winner, err := s.repo.GetByIdentity(ctx, identity)
		if err != nil {
			return "", fmt.Errorf("failed to re-read binding after conflict: %w", err)
		}
		if winner != nil {
			return s.refresh(ctx, winner, identity)
		}
	}

	return "", ErrKeySpaceExhausted
}

// refresh returns the existing key, reactivating the window first when it has
// elapsed. Reactivation preserves both key and hardware binding.
func (s *Service) refresh(ctx context.Context, binding *models.KeyBinding, identity string) (string, error) {
	if binding.Expired(s.window, s.now()) {
		if err := s.repo.Reactivate(ctx, binding.ID, s.now()); err != nil {
			return "", fmt.Errorf("failed to reactivate binding: %w", err)
		}
		log.Printf("[Issuer] Reactivated key for identity %s", utils.SanitizeLogMessage(identity))
	}
	return binding.Key, nil
}
