package registration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/violet-hub/keygate/database/repo/bindings"
	"github.com/violet-hub/keygate/internal/notify"
	"github.com/violet-hub/keygate/utils"
)

// Status is the success outcome of a registration call.
type Status string

const (
	// StatusRegistered means the hardware fingerprint was bound just now.
	StatusRegistered Status = "registered"
	// StatusAlreadyRegistered means the same fingerprint was already bound.
	StatusAlreadyRegistered Status = "already_registered"
)

var (
	// ErrInvalidRequest means key or hardware id was missing.
	ErrInvalidRequest = errors.New("missing key or hardware id")
	// ErrKeyNotFound means no binding holds the submitted key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyExpired means the activation window has elapsed; the client must
	// re-issue to reactivate before retrying.
	ErrKeyExpired = errors.New("key is expired")
	// ErrHardwareMismatch means the key is already locked to different
	// hardware. Security-relevant: the caller should distrust the client.
	ErrHardwareMismatch = errors.New("hardware id mismatch")
)

// Service validates a client-submitted (key, hardware id) pair against stored
// state. Binding is first-write-wins via a single conditional update; the
// first successful bind triggers a best-effort DM to the key's owner.
type Service struct {
	repo     *bindings.Repository
	notifier notify.Notifier
	window   time.Duration

	now func() time.Time
}

// NewService creates the registration service.
func NewService(repo *bindings.Repository, notifier notify.Notifier, window time.Duration) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		window:   window,
		now:      time.Now,
	}
}

// Register runs the per-record state machine:
// live+unbound  + submit          -> bound (StatusRegistered)
// live+bound    + same hardware   -> StatusAlreadyRegistered, no state change
// live+bound    + other hardware  -> ErrHardwareMismatch, stored value kept
// expired       + anything        -> ErrKeyExpired until reactivated
func (s *Service) Register(ctx context.Context, key, hardwareID string) (Status, error) {
	if key == "" || hardwareID == "" {
		return "", ErrInvalidRequest
	}

	binding, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to look up key: %w", err)
	}
	if binding == nil {
		return "", ErrKeyNotFound
	}

	if binding.Expired(s.window, s.now()) {
		return "", ErrKeyExpired
	}

	if binding.Bound() {
		if *binding.HardwareID == hardwareID {
			return StatusAlreadyRegistered, nil
		}
		log.Printf("[SECURITY] HWID mismatch for key %s", utils.SanitizeLogMessage(key))
		return "", ErrHardwareMismatch
	}

	bound, err := s.repo.BindHardware(ctx, key, hardwareID)
	if err != nil {
		return "", fmt.Errorf("failed to bind hardware: %w", err)
	}
	if !bound {
		// A concurrent registration won the conditional update; re-read to
		// tell an idempotent resubmit from a mismatch.
		current, err := s.repo.GetByKey(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to re-read binding: %w", err)
		}
		if current != nil && current.Bound() && *current.HardwareID == hardwareID {
			return StatusAlreadyRegistered, nil
		}
		log.Printf("[SECURITY] HWID mismatch for key %s", utils.SanitizeLogMessage(key))
		return "", ErrHardwareMismatch
	}

	log.Printf("[Register] Key %s bound to HWID %s",
		utils.SanitizeLogMessage(key), utils.SanitizeLogMessage(hardwareID))

	identity := binding.Identity
	content := fmt.Sprintf("✅ Your key is now registered!\nHWID: %s", hardwareID)
	utils.SafeGo(func() {
		if err := s.notifier.SendDM(context.Background(), identity, content); err != nil {
			log.Printf("[Register] Failed to DM %s: %v", utils.SanitizeLogMessage(identity), err)
		}
	})

	return StatusRegistered, nil
}
